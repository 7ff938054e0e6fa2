// Package finance holds the metric vocabulary and amount parsing shared by
// extraction and aggregation.
package finance

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Unit is the kind of quantity an amount expresses.
type Unit int

const (
	UnitPlain Unit = iota
	UnitCurrency
	UnitPercent
)

// Amount is a parsed display value.
type Amount struct {
	Value    float64
	Unit     Unit
	Currency string
}

// AmountPattern matches a display amount such as "$2.4M", "(1,200)", "15%" or "3.1 billion".
var AmountPattern = regexp.MustCompile(`(?i)[-+(]?\s?[$€£]?\s?\d[\d,]*(?:\.\d+)?\s?(?:%|(?:thousand|million|billion|mn|bn|[kmb])\b)?\)?`)

var yearPattern = regexp.MustCompile(`^(?:19|20)\d{2}$`)

var scales = map[string]float64{
	"k":        1e3,
	"thousand": 1e3,
	"m":        1e6,
	"mn":       1e6,
	"million":  1e6,
	"b":        1e9,
	"bn":       1e9,
	"billion":  1e9,
}

// ParseAmount parses a display amount. Parenthesised values are negative.
func ParseAmount(s string) (Amount, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return Amount{}, false
	}

	var a Amount
	neg := false
	if strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")") {
		neg = true
		t = strings.TrimSpace(t[1 : len(t)-1])
	} else {
		t = strings.TrimSpace(strings.Trim(t, "()"))
	}
	if strings.HasPrefix(t, "-") {
		neg = !neg
		t = strings.TrimSpace(t[1:])
	} else if strings.HasPrefix(t, "+") {
		t = strings.TrimSpace(t[1:])
	}
	for _, sym := range []string{"$", "€", "£"} {
		if strings.HasPrefix(t, sym) {
			a.Unit = UnitCurrency
			a.Currency = sym
			t = strings.TrimSpace(strings.TrimPrefix(t, sym))
			break
		}
	}
	if strings.HasPrefix(t, "-") {
		neg = !neg
		t = strings.TrimSpace(t[1:])
	}

	if strings.HasSuffix(t, "%") {
		a.Unit = UnitPercent
		t = strings.TrimSpace(strings.TrimSuffix(t, "%"))
	}

	scale := 1.0
	lower := strings.ToLower(t)
	end := len(lower)
	for end > 0 && (lower[end-1] < '0' || lower[end-1] > '9') {
		end--
	}
	if suffix := strings.TrimSpace(lower[end:]); suffix != "" {
		f, ok := scales[suffix]
		if !ok {
			return Amount{}, false
		}
		scale = f
		t = strings.TrimSpace(t[:end])
	}

	t = strings.ReplaceAll(t, ",", "")
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return Amount{}, false
	}
	v *= scale
	if neg {
		v = -v
	}
	a.Value = v
	return a, true
}

// IsYear reports whether s is a bare four digit year.
func IsYear(s string) bool {
	return yearPattern.MatchString(strings.TrimSpace(s))
}

// FormatCurrency renders v compactly, e.g. 2400000 -> "$2.4M".
func FormatCurrency(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	switch {
	case v >= 1e9:
		return sign + "$" + trimZero(v/1e9) + "B"
	case v >= 1e6:
		return sign + "$" + trimZero(v/1e6) + "M"
	case v >= 1e3:
		return sign + "$" + trimZero(v/1e3) + "K"
	default:
		return sign + "$" + trimZero(v)
	}
}

// FormatPercent renders a percentage; fractions in [-1,1] are scaled by 100.
func FormatPercent(v float64) string {
	if v != 0 && math.Abs(v) <= 1 {
		v *= 100
	}
	return trimZero(v) + "%"
}

// FormatPlain renders a count with thousands shortened.
func FormatPlain(v float64) string {
	if math.Abs(v) >= 1e4 {
		return strings.Replace(FormatCurrency(v), "$", "", 1)
	}
	return trimZero(v)
}

func trimZero(v float64) string {
	s := fmt.Sprintf("%.1f", math.Round(v*10)/10)
	return strings.TrimSuffix(s, ".0")
}
