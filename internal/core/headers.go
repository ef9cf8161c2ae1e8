package core

import "strings"

// Field is a canonical maintenance-record column.
type Field string

const (
	FieldProductName  Field = "product_name"
	FieldVendorName   Field = "vendor_name"
	FieldPurchaseDate Field = "purchase_date"
	FieldStartDate    Field = "start_date"
	FieldEndDate      Field = "end_date"
	FieldIncome       Field = "income"
	FieldCost         Field = "cost"
	FieldProfit       Field = "profit"
	FieldMargin       Field = "margin_percent"
	FieldSerialNumber Field = "serial_number"
	FieldNotes        Field = "notes"
)

// FieldSynonyms lists, per canonical field, the normalized header names that
// feed it. Earlier entries win when several are present and non-blank.
var FieldSynonyms = map[Field][]string{
	FieldProductName:  {"products", "product", "product name"},
	FieldVendorName:   {"account name", "vendor", "vendor name"},
	FieldPurchaseDate: {"purchase date", "purchase"},
	FieldStartDate:    {"start date", "start"},
	FieldEndDate:      {"end date", "end"},
	FieldIncome:       {"income"},
	FieldCost:         {"cogs", "cost"},
	FieldProfit:       {"profit"},
	FieldMargin:       {"margin %", "margin"},
	FieldSerialNumber: {"serial number", "serial"},
	FieldNotes:        {"notes (hardware maintenance)", "notes"},
}

// NormalizeHeader strips BOM markers, collapses internal whitespace and
// lower-cases a header cell.
func NormalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\uFEFF", "")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// RowValues maps normalized header names to the trimmed cell values of one row.
type RowValues map[string]string

// LookupField returns the first non-blank value among synonyms, or "".
func LookupField(row RowValues, synonyms []string) string {
	for _, name := range synonyms {
		if v, ok := row[name]; ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// lookup resolves a canonical field against a row.
func (r RowValues) lookup(f Field) string {
	return LookupField(r, FieldSynonyms[f])
}
