package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ExportColumns is the fixed header of the expiration export.
var ExportColumns = []string{
	"Product Name",
	"Product Type",
	"Vendor",
	"Account",
	"Expiration Date",
	"Days Until Expiry",
	"Cost",
	"Status",
}

// ExportCSV serializes records to CSV. Every value is double-quoted with
// embedded quotes doubled; rows are joined with "\n". An empty input yields
// the header row only.
func ExportCSV(records []ExpiringRecord) string {
	rows := make([]string, 0, len(records)+1)
	rows = append(rows, strings.Join(ExportColumns, ","))

	for _, rec := range records {
		expiration := ""
		if rec.EndDate != nil {
			expiration = rec.EndDate.Format(isoDate)
		}
		cost := ""
		if rec.Cost != nil {
			cost = fmt.Sprintf("%.2f", *rec.Cost)
		}

		values := []string{
			rec.ProductName,
			string(rec.ProductType),
			deref(rec.VendorName),
			deref(rec.AccountName),
			expiration,
			strconv.Itoa(rec.DaysUntilExpiry),
			cost,
			string(rec.Status),
		}
		for i, v := range values {
			values[i] = quote(v)
		}
		rows = append(rows, strings.Join(values, ","))
	}

	return strings.Join(rows, "\n")
}

// ExportFilename is the download name for a report generated on day.
func ExportFilename(day time.Time) string {
	return "maintenance-expiration-report-" + day.Format(isoDate) + ".csv"
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
