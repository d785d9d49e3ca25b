package core

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount coerces user input into an amount. It never fails: the
// longest leading decimal number is used, so trailing text is ignored, and
// input without one (or NaN/infinite) becomes 0. Negative values pass
// through unchanged.
//
// Examples:
//
//	ParseAmount("12.50") -> 12.5
//	ParseAmount(" 7 ")   -> 7
//	ParseAmount("12abc") -> 12
//	ParseAmount("1,5")   -> 1
//	ParseAmount("abc")   -> 0
func ParseAmount(s string) float64 {
	prefix := numericPrefix(strings.TrimSpace(s))
	if prefix == "" {
		return 0
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// numericPrefix returns the longest prefix of s of the form
// [+-]digits[.digits][e[+-]digits], or "" when s has no digits up front.
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	intDigits := skipDigits(s, i)
	mantissaEnd := intDigits
	fracDigits := 0
	if intDigits < len(s) && s[intDigits] == '.' {
		end := skipDigits(s, intDigits+1)
		fracDigits = end - (intDigits + 1)
		if intDigits > i || fracDigits > 0 {
			mantissaEnd = end
		}
	}
	if intDigits == i && fracDigits == 0 {
		return ""
	}

	end := mantissaEnd
	if end < len(s) && (s[end] == 'e' || s[end] == 'E') {
		j := end + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if k := skipDigits(s, j); k > j {
			end = k
		}
	}
	return s[:end]
}

func skipDigits(s string, i int) int {
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}

// FormatAmount renders an amount with the shortest exact representation,
// e.g. 10 -> "10", 12.5 -> "12.5".
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
