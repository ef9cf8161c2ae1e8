package core

import (
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strings"
)

var (
	accountNameToken = regexp.MustCompile(`account\s*name`)
	productsToken    = regexp.MustCompile(`products?`)
)

// ParseResult is the output of ParseWithStats.
type ParseResult struct {
	Candidates []MaintenanceCandidate `json:"candidates"`
	DataRows   int                    `json:"data_rows"` // non-empty rows after the header
	Dropped    int                    `json:"dropped"`   // unreadable rows and rows without a product name
}

// Parse converts delimited maintenance text to candidates, in input order.
// Unreadable input yields an empty result, never an error.
func Parse(raw string) []MaintenanceCandidate {
	return ParseWithStats(raw).Candidates
}

// ParseWithStats is Parse plus the row counts callers need to report drops.
func ParseWithStats(raw string) ParseResult {
	text := strings.TrimPrefix(raw, "\uFEFF")
	if strings.TrimSpace(text) == "" {
		return ParseResult{}
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	headerIdx := findHeaderLine(lines)

	reader := csv.NewReader(strings.NewReader(strings.Join(lines[headerIdx:], "\n")))
	reader.Comma = detectDelimiter(lines[headerIdx])
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	headerRecord, err := reader.Read()
	if err != nil {
		return ParseResult{}
	}
	headers := make([]string, len(headerRecord))
	for i, h := range headerRecord {
		headers[i] = NormalizeHeader(h)
	}

	return collectCandidates(reader, headers)
}

// recordReader is the part of *csv.Reader the row loop uses.
type recordReader interface {
	Read() ([]string, error)
}

// collectCandidates reads data rows until EOF. A row the reader cannot parse
// counts as a dropped data row.
func collectCandidates(reader recordReader, headers []string) ParseResult {
	var result ParseResult
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.DataRows++
				result.Dropped++
				continue
			}
			break
		}
		if isBlankRecord(record) {
			continue
		}

		result.DataRows++
		candidate, ok := candidateFromRow(rowValues(headers, record))
		if !ok {
			result.Dropped++
			continue
		}
		result.Candidates = append(result.Candidates, candidate)
	}

	return result
}

// findHeaderLine returns the index of the header row. Lines before it are
// treated as preamble.
func findHeaderLine(lines []string) int {
	cleaned := make([]string, len(lines))
	for i, line := range lines {
		cleaned[i] = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(line, "\uFEFF", "")))
	}

	for i, line := range cleaned {
		if strings.Contains(line, "account name") &&
			strings.Contains(line, "products") &&
			strings.Contains(line, "serial number") {
			return i
		}
	}

	for i, line := range cleaned {
		if accountNameToken.MatchString(line) && productsToken.MatchString(line) {
			return i
		}
	}

	return 0
}

// detectDelimiter picks the separator from the header line alone.
func detectDelimiter(headerLine string) rune {
	switch {
	case strings.Contains(headerLine, "\t"):
		return '\t'
	case strings.Contains(headerLine, ";") && !strings.Contains(headerLine, ","):
		return ';'
	default:
		return ','
	}
}

// rowValues pairs a record with its headers. When two columns normalize to the
// same header the first one wins.
func rowValues(headers, record []string) RowValues {
	row := make(RowValues, len(headers))
	for i, h := range headers {
		if i >= len(record) {
			break
		}
		if _, seen := row[h]; seen {
			continue
		}
		row[h] = strings.TrimSpace(record[i])
	}
	return row
}

func isBlankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// candidateFromRow maps one row to a candidate. ok is false when the row has
// no product name.
func candidateFromRow(row RowValues) (MaintenanceCandidate, bool) {
	product := row.lookup(FieldProductName)
	if product == "" {
		return MaintenanceCandidate{}, false
	}

	return MaintenanceCandidate{
		ProductName:   product,
		ProductType:   ClassifyProduct(product),
		VendorName:    optionalText(row.lookup(FieldVendorName)),
		PurchaseDate:  optionalDate(row.lookup(FieldPurchaseDate)),
		StartDate:     optionalDate(row.lookup(FieldStartDate)),
		EndDate:       optionalDate(row.lookup(FieldEndDate)),
		Cost:          optionalMoney(row.lookup(FieldCost)),
		Income:        optionalMoney(row.lookup(FieldIncome)),
		Profit:        optionalMoney(row.lookup(FieldProfit)),
		MarginPercent: optionalMoney(row.lookup(FieldMargin)),
		SerialNumber:  optionalText(row.lookup(FieldSerialNumber)),
		Notes:         optionalText(row.lookup(FieldNotes)),
		Status:        StatusActive,
	}, true
}
