package finance

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrInvalidAmount = errors.New("invalid amount: use a decimal number with at most 2 decimals, e.g. 1,250.50")

	// 1250 | 1,250 | 1250.5 | 1,250.50 | .50
	amountRegex = regexp.MustCompile(`^(\d{1,3}(,\d{3})+|\d*)(\.\d{1,2})?$`)
)

// ParseAmount parses a positive decimal amount into cents.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." || !amountRegex.MatchString(s) {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", "")

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > (1<<62)/100 {
		return 0, ErrInvalidAmount
	}
	cents, _ := strconv.ParseInt(frac, 10, 64)
	return units*100 + cents, nil
}

// FormatAmount renders cents as a decimal amount with thousands separators.
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	frac := strconv.FormatInt(cents%100, 10)
	if len(frac) < 2 {
		frac = "0" + frac
	}
	return sign + b.String() + "." + frac
}
