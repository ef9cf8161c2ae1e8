package core

// convert.go normalizes the loosely formatted cell values found in
// maintenance spreadsheets:
//   - Dates in ISO, US, EU and written-out forms ("Jan 15, 2024")
//   - Currency symbols, percent signs and thousand separators in amounts
//   - Accounting negatives "(123.45)"
//   - "N/A" placeholders
//
// Every function reports absence with ok=false instead of an error; a bad
// cell never rejects its row.

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// isoDate is the output layout of NormalizeDate.
const isoDate = "2006-01-02"

// numericRegex validates that a string is a plain decimal number after cleanup.
// strconv.ParseFloat alone would also accept hex floats, "Inf" and "NaN".
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// directDateLayouts are tried in order before the numeric fallback.
// Day-first numeric dates are intentionally absent: they are handled by the
// swap rule in fallbackDate.
var directDateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2-Jan-2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NormalizeDate converts a date cell to "YYYY-MM-DD".
//
// Numeric dates whose first part is greater than 12 are read day-first;
// anything else is read month-first, so "03/04/2024" is March 4th.
func NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if isBlankOrNA(s) {
		return "", false
	}

	for _, layout := range directDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(isoDate), true
		}
	}

	return fallbackDate(s)
}

// fallbackDate splits a numeric date into three parts and applies the
// two-digit-year and day/month swap rules.
func fallbackDate(s string) (string, bool) {
	s = strings.NewReplacer(".", "/", "-", "/").Replace(s)
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return "", false
	}

	nums := make([]int, 3)
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || strings.TrimFunc(p, unicode.IsDigit) != "" {
			return "", false
		}
		if i == 2 && len(p) == 2 {
			p = "20" + p
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", false
		}
		nums[i] = n
	}

	month, day, year := nums[0], nums[1], nums[2]
	if month > 12 {
		month, day = day, month
	}

	iso := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	if _, err := time.Parse(isoDate, iso); err != nil {
		return "", false
	}
	return iso, true
}

// ParseMoney converts a currency or percent cell to a float.
// Handles currency symbols, percent signs, whitespace, comma thousand
// separators and accounting format (parentheses for negative).
func ParseMoney(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if isBlankOrNA(s) {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == ',' || r == '%' || unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, s)

	if !numericRegex.MatchString(s) {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

func isBlankOrNA(s string) bool {
	return s == "" || strings.EqualFold(s, "n/a")
}

// optionalText returns nil for blank strings.
func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalDate(raw string) *string {
	iso, ok := NormalizeDate(raw)
	if !ok {
		return nil
	}
	return &iso
}

func optionalMoney(raw string) *float64 {
	v, ok := ParseMoney(raw)
	if !ok {
		return nil
	}
	return &v
}
