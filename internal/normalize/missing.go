package normalize

import (
	"strconv"
	"strings"

	"github.com/couchcryptid/shef-etl/internal/domain"
)

// DefaultMissingToken is the mesonet missing-data marker.
const DefaultMissingToken = "M"

// SHEFMissingTokens are the missing markers accepted in SHEF text.
var SHEFMissingTokens = []string{"M", "MM", domain.MissingText}

// IsMissing reports whether text is one of tokens or the numeric -9999 sentinel.
func IsMissing(text string, tokens ...string) bool {
	text = strings.TrimSpace(text)
	for _, tok := range tokens {
		if text == tok {
			return true
		}
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil && v == -9999 {
		return true
	}
	return false
}

// DestinationSample maps a SHEF value onto a destination sample, substituting
// the missing value convention for missing tokens.
func DestinationSample(t int64, text string, tokens ...string) (domain.Sample, error) {
	if IsMissing(text, tokens...) {
		return domain.MissingSample(t), nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return domain.Sample{}, err
	}
	return domain.Sample{Time: t, Value: v}, nil
}
