// Package templates renders the HTML views with templ components.
//
// Edit the .templ files and run templ generate to refresh the *_templ.go output.
package templates

import (
	"strconv"

	"github.com/JonMunkholm/crm/internal/core"
)

//go:generate templ generate

// recordCells follows the column order of core.ExportColumns.
func recordCells(rec core.ExpiringRecord) []string {
	expiration, cost := "", ""
	if rec.EndDate != nil {
		expiration = rec.EndDate.Format("2006-01-02")
	}
	if rec.Cost != nil {
		cost = formatMoney(*rec.Cost)
	}
	return []string{
		rec.ProductName,
		string(rec.ProductType),
		strOrEmpty(rec.VendorName),
		strOrEmpty(rec.AccountName),
		expiration,
		strconv.Itoa(rec.DaysUntilExpiry),
		cost,
		string(rec.Status),
	}
}

func formatMoney(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
