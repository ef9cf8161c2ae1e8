package core

import (
	"encoding/csv"
	"io"
	"reflect"
	"strings"
	"testing"
)

const canonicalHeader = "Account Name,Purchase Date,Start Date,End Date,Products,Serial Number,Income,COGS,Profit,Margin %,Notes (Hardware Maintenance)"

const canonicalSample = canonicalHeader + "\n" +
	"Acme Corp,2024-01-15,2024-01-15,2025-01-15,Microsoft Office 365,ABC123-DEF456,599.99,299.99,300.00,50.0%,Enterprise license\n" +
	"Globex,2024-02-01,2024-02-01,2025-02-01,Dell PowerEdge R740 Server,SRV-001,1200.00,800.00,400.00,33.3%,Next business day onsite\n" +
	"Initech,03/15/2024,03/15/2024,03/15/2025,Adobe Creative Cloud,ADB-789,\"1,499.00\",999.00,500.00,33.4%,\n"

func TestParse_CanonicalSample(t *testing.T) {
	got := Parse(canonicalSample)
	if len(got) != 3 {
		t.Fatalf("Parse() returned %d candidates, want 3", len(got))
	}

	wantTypes := []ProductType{ProductSoftware, ProductHardware, ProductSoftware}
	for i, c := range got {
		if c.ProductType != wantTypes[i] {
			t.Errorf("row %d (%s) type = %s, want %s", i, c.ProductName, c.ProductType, wantTypes[i])
		}
		if c.Status != StatusActive {
			t.Errorf("row %d status = %q, want active", i, c.Status)
		}
	}

	wantMoney := []struct{ income, cost, profit, margin float64 }{
		{599.99, 299.99, 300.00, 50.0},
		{1200.00, 800.00, 400.00, 33.3},
		{1499.00, 999.00, 500.00, 33.4},
	}
	for i, w := range wantMoney {
		c := got[i]
		checkFloat(t, "income", c.Income, w.income)
		checkFloat(t, "cost", c.Cost, w.cost)
		checkFloat(t, "profit", c.Profit, w.profit)
		checkFloat(t, "margin", c.MarginPercent, w.margin)
	}

	first := got[0]
	checkString(t, "product", &first.ProductName, "Microsoft Office 365")
	checkString(t, "vendor", first.VendorName, "Acme Corp")
	checkString(t, "purchase date", first.PurchaseDate, "2024-01-15")
	checkString(t, "end date", first.EndDate, "2025-01-15")
	checkString(t, "serial", first.SerialNumber, "ABC123-DEF456")
	checkString(t, "notes", first.Notes, "Enterprise license")

	third := got[2]
	checkString(t, "us end date", third.EndDate, "2025-03-15")
	if third.Notes != nil {
		t.Errorf("empty notes should be nil, got %q", *third.Notes)
	}
}

func TestParse_HeaderAfterPreamble(t *testing.T) {
	preambles := []string{
		"Maintenance Contracts Export",
		"",
		"Generated 2024-06-01 by finance",
		"# internal use only",
		",,,,,",
	}

	for n := 0; n <= len(preambles); n++ {
		text := strings.Join(append(append([]string{}, preambles[:n]...), canonicalSample), "\n")
		got := Parse(text)
		if len(got) != 3 {
			t.Errorf("with %d preamble lines: got %d candidates, want 3", n, len(got))
			continue
		}
		if got[0].ProductName != "Microsoft Office 365" {
			t.Errorf("with %d preamble lines: first product = %q", n, got[0].ProductName)
		}
	}
}

func TestParse_DelimiterEquivalence(t *testing.T) {
	header := []string{"Account Name", "End Date", "Products", "Serial Number", "COGS", "Margin %"}
	rows := [][]string{
		{"Acme Corp", "2025-01-15", "Microsoft Office 365", "ABC-1", "$299.99", "50%"},
		{"Globex", "15/02/2025", "Cisco Catalyst Switch", "SW-2", "800", "N/A"},
	}

	build := func(sep string) string {
		lines := []string{strings.Join(header, sep)}
		for _, r := range rows {
			lines = append(lines, strings.Join(r, sep))
		}
		return strings.Join(lines, "\n")
	}

	comma := Parse(build(","))
	if len(comma) != 2 {
		t.Fatalf("comma: got %d candidates, want 2", len(comma))
	}
	for _, sep := range []string{"\t", ";"} {
		got := Parse(build(sep))
		if !reflect.DeepEqual(got, comma) {
			t.Errorf("separator %q produced %+v, want %+v", sep, got, comma)
		}
	}

	if comma[1].MarginPercent != nil {
		t.Error("N/A margin should be absent")
	}
	checkString(t, "swapped end date", comma[1].EndDate, "2025-02-15")
}

func TestParse_Idempotent(t *testing.T) {
	first := ParseWithStats(canonicalSample)
	second := ParseWithStats(canonicalSample)
	if !reflect.DeepEqual(first, second) {
		t.Error("two parses of the same text differ")
	}
}

func TestParse_RowCountInvariant(t *testing.T) {
	text := canonicalHeader + "\n" +
		"Acme,,,,Office 365,SN1,,,,,\n" +
		"\n" +
		"Globex,,,,,SN2,,,,,\n" + // no product
		",,,,,,,,,,\n" + // blank row, not a data row
		"Initech,,,,   ,SN3,,,,,\n" + // whitespace product
		"Umbrella,,,,HP ProLiant,SN4,,,,,\n"

	res := ParseWithStats(text)
	if res.DataRows != 4 {
		t.Errorf("DataRows = %d, want 4", res.DataRows)
	}
	if len(res.Candidates) != 2 {
		t.Errorf("candidates = %d, want 2", len(res.Candidates))
	}
	if res.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", res.Dropped)
	}
	if len(res.Candidates)+res.Dropped != res.DataRows {
		t.Error("candidates + dropped must equal data rows")
	}
	if res.Candidates[1].ProductName != "HP ProLiant" {
		t.Errorf("order not preserved: %q", res.Candidates[1].ProductName)
	}
}

func TestParse_BOMAndCRLF(t *testing.T) {
	text := "\uFEFF" + strings.ReplaceAll(canonicalSample, "\n", "\r\n")
	got := Parse(text)
	if len(got) != 3 {
		t.Fatalf("got %d candidates, want 3", len(got))
	}
	checkString(t, "vendor", got[0].VendorName, "Acme Corp")
	checkString(t, "notes", got[1].Notes, "Next business day onsite")
}

func TestParse_QuotedFields(t *testing.T) {
	text := canonicalHeader + "\n" +
		`"Acme, Inc.",,,2025-01-01,"Office ""Pro"" Plus",SN1,,"$1,000.00",,,"multi` + "\n" + `line"` + "\n"

	got := Parse(text)
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	checkString(t, "vendor", got[0].VendorName, "Acme, Inc.")
	checkString(t, "product", &got[0].ProductName, `Office "Pro" Plus`)
	checkFloat(t, "cost", got[0].Cost, 1000)
	checkString(t, "notes", got[0].Notes, "multi\nline")
}

func TestParse_FallbackHeaderDetection(t *testing.T) {
	text := "Quarterly renewals\n" +
		"AccountName,Product,Serial,End\n" +
		"Acme,Lenovo ThinkPad Laptop,LT-1,2025-05-01\n"

	got := Parse(text)
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	if got[0].ProductType != ProductHardware {
		t.Errorf("type = %s, want hardware", got[0].ProductType)
	}
	checkString(t, "serial", got[0].SerialNumber, "LT-1")
	checkString(t, "end", got[0].EndDate, "2025-05-01")
	// "accountname" is not a vendor synonym, so the vendor stays absent.
	if got[0].VendorName != nil {
		t.Errorf("vendor = %q, want nil", *got[0].VendorName)
	}
}

func TestParse_DefaultsToFirstLine(t *testing.T) {
	text := "Vendor,Product Name,Cost\nContoso,Veeam Backup,1200\n"
	got := Parse(text)
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	checkString(t, "vendor", got[0].VendorName, "Contoso")
	checkFloat(t, "cost", got[0].Cost, 1200)
}

func TestParse_SynonymPriority(t *testing.T) {
	text := "Products,Product,Account Name,Vendor,COGS,Cost\n" +
		",Fallback Product,,Vendor Co,,42\n" +
		"Primary,Ignored,Acme,Vendor Co,10,42\n"

	got := Parse(text)
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	checkString(t, "product", &got[0].ProductName, "Fallback Product")
	checkString(t, "vendor", got[0].VendorName, "Vendor Co")
	checkFloat(t, "cost", got[0].Cost, 42)

	checkString(t, "product", &got[1].ProductName, "Primary")
	checkString(t, "vendor", got[1].VendorName, "Acme")
	checkFloat(t, "cost", got[1].Cost, 10)
}

func TestParse_EmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\uFEFF", "\n\n", canonicalHeader} {
		if got := Parse(text); len(got) != 0 {
			t.Errorf("Parse(%q) = %d candidates, want 0", text, len(got))
		}
	}
}

func TestParse_ShortRows(t *testing.T) {
	text := canonicalHeader + "\nAcme,2024-01-01,2024-01-01,2025-01-01,Office 365\n"
	got := Parse(text)
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	if got[0].SerialNumber != nil || got[0].Cost != nil {
		t.Error("missing trailing columns should be absent")
	}
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		line string
		want rune
	}{
		{"a,b,c", ','},
		{"a\tb\tc", '\t'},
		{"a\tb,c", '\t'},
		{"a;b;c", ';'},
		{"a;b,c", ','},
		{"abc", ','},
	}
	for _, tt := range tests {
		if got := detectDelimiter(tt.line); got != tt.want {
			t.Errorf("detectDelimiter(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestFindHeaderLine(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  int
	}{
		{"first line", []string{"Account Name,Products,Serial Number"}, 0},
		{"after title", []string{"Report", "", "ACCOUNT NAME,PRODUCTS,SERIAL NUMBER"}, 2},
		{"bom on header", []string{"x", "\uFEFFAccount Name,Products,Serial Number"}, 1},
		{"full match preferred", []string{"Account Name,Product", "Account Name,Products,Serial Number"}, 1},
		{"regex fallback", []string{"title", "account  name;product"}, 1},
		{"nothing found", []string{"a,b", "c,d"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findHeaderLine(tt.lines); got != tt.want {
				t.Errorf("findHeaderLine() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"Account Name":                   "account name",
		"  PRODUCT   NAME ":              "product name",
		"\uFEFFProducts":                 "products",
		"Notes (Hardware\tMaintenance)":  "notes (hardware maintenance)",
		"Margin %":                       "margin %",
	}
	for in, want := range tests {
		if got := NormalizeHeader(in); got != want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLookupField(t *testing.T) {
	row := RowValues{"products": "", "product": "  Office  ", "product name": "Other"}
	if got := LookupField(row, FieldSynonyms[FieldProductName]); got != "Office" {
		t.Errorf("LookupField() = %q, want %q", got, "Office")
	}
	if got := LookupField(row, []string{"missing"}); got != "" {
		t.Errorf("LookupField(missing) = %q, want empty", got)
	}
}

func TestFieldSynonyms_AllFieldsMapped(t *testing.T) {
	fields := []Field{
		FieldProductName, FieldVendorName, FieldPurchaseDate, FieldStartDate, FieldEndDate,
		FieldIncome, FieldCost, FieldProfit, FieldMargin, FieldSerialNumber, FieldNotes,
	}
	for _, f := range fields {
		syn := FieldSynonyms[f]
		if len(syn) == 0 {
			t.Errorf("%s has no synonyms", f)
		}
		for _, s := range syn {
			if NormalizeHeader(s) != s {
				t.Errorf("%s synonym %q is not in normalized form", f, s)
			}
		}
	}
}

func checkString(t *testing.T, field string, got *string, want string) {
	t.Helper()
	if got == nil {
		t.Errorf("%s = nil, want %q", field, want)
		return
	}
	if *got != want {
		t.Errorf("%s = %q, want %q", field, *got, want)
	}
}

func checkFloat(t *testing.T, field string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Errorf("%s = nil, want %v", field, want)
		return
	}
	if *got != want {
		t.Errorf("%s = %v, want %v", field, *got, want)
	}
}

// scriptedReader replays fixed Read results.
type scriptedReader struct {
	records [][]string
	errs    []error
}

func (s *scriptedReader) Read() ([]string, error) {
	if len(s.records) == 0 {
		return nil, io.EOF
	}
	rec, err := s.records[0], s.errs[0]
	s.records, s.errs = s.records[1:], s.errs[1:]
	return rec, err
}

func TestCollectCandidates_UnreadableRowsCountAsDropped(t *testing.T) {
	headers := []string{"products", "account name"}
	bad := &csv.ParseError{StartLine: 3, Line: 3, Column: 4, Err: csv.ErrBareQuote}
	reader := &scriptedReader{
		records: [][]string{{"Dell Laptop", "Acme"}, nil, {"", "Globex"}, {"Office 365", "Initech"}},
		errs:    []error{nil, bad, nil, nil},
	}

	res := collectCandidates(reader, headers)
	if len(res.Candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(res.Candidates))
	}
	if res.DataRows != 4 || res.Dropped != 2 {
		t.Errorf("DataRows = %d, Dropped = %d, want 4 and 2", res.DataRows, res.Dropped)
	}
	if res.DataRows != len(res.Candidates)+res.Dropped {
		t.Error("every data row must be either a candidate or dropped")
	}
}

func TestCollectCandidates_StrictReaderBareQuote(t *testing.T) {
	reader := csv.NewReader(strings.NewReader("Dell Laptop\nbad \"quote\nOffice 365\n"))
	res := collectCandidates(reader, []string{"products"})
	if len(res.Candidates) != 2 || res.DataRows != 3 || res.Dropped != 1 {
		t.Errorf("candidates = %d, DataRows = %d, Dropped = %d", len(res.Candidates), res.DataRows, res.Dropped)
	}
}
