package normalize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrVectorRange is returned for magnitudes that do not fit the 4 decimal fraction.
	ErrVectorRange = errors.New("vector magnitude out of range")
	// ErrVectorFormat is returned when a vector value cannot be parsed.
	ErrVectorFormat = errors.New("malformed vector value")
)

// EncodeVector writes a depth-tagged value: the magnitude divided by 1000 as a
// 4 decimal fraction, prefixed by the integer depth, signed only when negative.
// Depth 4 and 25.3 encode as "4.0253".
func EncodeVector(depth int, v float64) (string, error) {
	if depth < 0 {
		return "", fmt.Errorf("%w: negative depth %d", ErrVectorRange, depth)
	}
	scaled := v / 1000
	frac := strconv.FormatFloat(math.Abs(scaled), 'f', 4, 64)
	if !strings.HasPrefix(frac, "0.") {
		return "", fmt.Errorf("%w: %g", ErrVectorRange, v)
	}

	out := strconv.Itoa(depth) + frac[1:]
	if scaled < 0 {
		out = "-" + out
	}
	return out, nil
}

// DecodeVector reverses EncodeVector.
func DecodeVector(s string) (int, float64, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimLeft(s, "+-")

	whole, frac, ok := strings.Cut(s, ".")
	if !ok || whole == "" || frac == "" {
		return 0, 0, fmt.Errorf("%w: %q", ErrVectorFormat, s)
	}
	depth, err := strconv.Atoi(whole)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: depth %q", ErrVectorFormat, whole)
	}
	digits, err := strconv.ParseUint(frac, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: fraction %q", ErrVectorFormat, frac)
	}

	// fraction * 1000 == digits / 10^(len-3)
	v := float64(digits) / math.Pow10(len(frac)-3)
	if neg {
		v = -v
	}
	return depth, v, nil
}
