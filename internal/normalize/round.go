package normalize

import (
	"math"
	"strconv"
	"strings"
)

// Round formats v with the given number of decimals, rounding halves away
// from zero. The shortest decimal representation of v is rounded, so 2.675
// becomes "2.68".
func Round(v float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', decimals, 64)
	}

	s := strconv.FormatFloat(math.Abs(v), 'f', -1, 64)
	whole, frac, _ := strings.Cut(s, ".")

	var digits []byte
	if len(frac) <= decimals {
		digits = []byte(whole + frac + strings.Repeat("0", decimals-len(frac)))
	} else {
		digits = []byte(whole + frac[:decimals])
		if frac[decimals] >= '5' {
			digits = increment(digits)
		}
	}

	intLen := len(digits) - decimals
	out := string(digits[:intLen])
	if decimals > 0 {
		out += "." + string(digits[intLen:])
	}
	if v < 0 && strings.Trim(out, "0.") != "" {
		out = "-" + out
	}
	return out
}

func increment(digits []byte) []byte {
	for i := len(digits) - 1; i >= 0; i-- {
		if digits[i] == '9' {
			digits[i] = '0'
			continue
		}
		digits[i]++
		return digits
	}
	return append([]byte{'1'}, digits...)
}
