package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"case-disposition-engine/internal/models"
)

// CSVParser errors
var (
	ErrEmptyCSV       = errors.New("CSV content is empty")
	ErrMissingColumns = errors.New("missing required columns")
	ErrNoDataRows     = errors.New("CSV file contains no data rows")
	ErrInvalidRowData = errors.New("invalid row data")
)

// RequiredColumns defines the columns that must be present in the CSV.
var RequiredColumns = []string{
	"case_id",
	"region",
	"amount",
	"business_type",
}

// ColumnAliases maps alternative column names to standard names.
var ColumnAliases = map[string]string{
	// case_id aliases
	"caseid":      "case_id",
	"case id":     "case_id",
	"case_no":     "case_id",
	"case no":     "case_id",
	"case_number": "case_id",
	"id":          "case_id",
	"loan_id":     "case_id",
	"contract_no": "case_id",

	// package_id aliases
	"packageid":  "package_id",
	"package id": "package_id",
	"package":    "package_id",
	"batch_id":   "package_id",
	"batchid":    "package_id",
	"batch":      "package_id",

	// debtor_name aliases
	"debtor":      "debtor_name",
	"debtorname":  "debtor_name",
	"debtor name": "debtor_name",
	"borrower":    "debtor_name",
	"name":        "debtor_name",

	// region aliases
	"area":     "region",
	"city":     "region",
	"province": "region",
	"location": "region",

	// amount aliases
	"debt_amount":      "amount",
	"debtamount":       "amount",
	"overdue_amount":   "amount",
	"outstanding":      "amount",
	"principal":        "amount",
	"amount_in_arrear": "amount",

	// business_type aliases
	"businesstype":  "business_type",
	"business type": "business_type",
	"business":      "business_type",
	"product_type":  "business_type",
	"loan_type":     "business_type",
	"type":          "business_type",

	// urgency aliases
	"priority":      "urgency",
	"urgency_level": "urgency",

	// qualifications aliases
	"qualification":           "qualifications",
	"required_qualifications": "qualifications",
	"licenses":                "qualifications",

	// overdue_days aliases
	"overduedays":  "overdue_days",
	"overdue days": "overdue_days",
	"days_overdue": "overdue_days",
	"dpd":          "overdue_days",
}

// CSVParser handles parsing of case CSV files.
type CSVParser struct {
	columnMapping map[string]int
}

// NewCSVParser creates a new CSV parser instance.
func NewCSVParser() *CSVParser {
	return &CSVParser{
		columnMapping: make(map[string]int),
	}
}

// ParseCases parses CSV content into cases. Rows without a package_id are given defaultPackageID.
func (p *CSVParser) ParseCases(content string, defaultPackageID string) ([]*models.Case, []error) {
	if strings.TrimSpace(content) == "" {
		return nil, []error{ErrEmptyCSV}
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // Allow variable number of fields

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read header: %w", err)}
	}

	if err := p.buildColumnMapping(header); err != nil {
		return nil, []error{err}
	}

	var cases []*models.Case
	var parseErrors []error
	seen := make(map[string]int)
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}

		c, err := p.parseRow(record, defaultPackageID)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}

		if err := models.ValidateCase(c); err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}

		if first, dup := seen[c.ID]; dup {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w: %s also on line %d", lineNum, models.ErrDuplicateID, c.ID, first))
			continue
		}
		seen[c.ID] = lineNum

		cases = append(cases, c)
	}

	if len(cases) == 0 && len(parseErrors) > 0 {
		return nil, append([]error{ErrNoDataRows}, parseErrors...)
	}

	return cases, parseErrors
}

// buildColumnMapping creates a mapping of standard column names to their indices.
func (p *CSVParser) buildColumnMapping(header []string) error {
	p.columnMapping = make(map[string]int)

	for i, col := range header {
		normalized := normalizeColumn(col)
		if _, exists := p.columnMapping[normalized]; exists {
			continue
		}
		p.columnMapping[normalized] = i
	}

	var missing []string
	for _, required := range RequiredColumns {
		if _, ok := p.columnMapping[required]; !ok {
			missing = append(missing, required)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	return nil
}

// parseRow parses a single CSV row into a Case.
func (p *CSVParser) parseRow(record []string, defaultPackageID string) (*models.Case, error) {
	getValue := func(column string) string {
		idx, ok := p.columnMapping[column]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	caseID := getValue("case_id")
	if caseID == "" {
		return nil, fmt.Errorf("%w: case_id is empty", ErrInvalidRowData)
	}

	amount, err := parseFloat(getValue("amount"))
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	urgency := models.NormalizeUrgency(getValue("urgency"))
	if !urgency.IsValid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidUrgency, getValue("urgency"))
	}

	overdueDays := 0
	if raw := getValue("overdue_days"); raw != "" {
		overdueDays, err = parseInt(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid overdue_days: %w", err)
		}
	}

	packageID := getValue("package_id")
	if packageID == "" {
		packageID = defaultPackageID
	}

	return &models.Case{
		ID:             caseID,
		PackageID:      packageID,
		DebtorName:     getValue("debtor_name"),
		Region:         getValue("region"),
		Amount:         amount,
		BusinessType:   getValue("business_type"),
		Urgency:        urgency,
		Qualifications: splitList(getValue("qualifications")),
		Status:         models.CaseStatusPending,
		OverdueDays:    overdueDays,
	}, nil
}

// GroupIntoBatches groups cases by package id into draft batches, ordered by package id.
// Cases keep their CSV order within each batch.
func GroupIntoBatches(cases []*models.Case) []*models.CaseBatch {
	grouped := make(map[string][]*models.Case)
	for _, c := range cases {
		if c == nil {
			continue
		}
		grouped[c.PackageID] = append(grouped[c.PackageID], c)
	}

	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	batches := make([]*models.CaseBatch, 0, len(ids))
	for _, id := range ids {
		batches = append(batches, models.NewCaseBatch(id, grouped[id]))
	}
	return batches
}

func normalizeColumn(col string) string {
	normalized := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
	if alias, ok := ColumnAliases[normalized]; ok {
		return alias
	}
	return normalized
}

// splitList splits a multi-valued cell on ';' or '|'.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' })
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// parseFloat parses a string to float64, handling common formats.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}

	// Remove commas and currency symbols
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "¥")
	s = strings.TrimPrefix(s, "￥")
	s = strings.TrimSpace(s)

	return strconv.ParseFloat(s, 64)
}

// parseInt parses a string to int, handling common formats.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	// Handle float strings (e.g., "30.0")
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return int(f), nil
	}

	return strconv.Atoi(s)
}

// ValidateCSVStructure performs a quick validation of CSV structure without full parsing.
func ValidateCSVStructure(content string) (*CSVValidationResult, error) {
	result := &CSVValidationResult{
		Valid:          false,
		RowCount:       0,
		Columns:        []string{},
		MissingColumns: []string{},
		Errors:         []string{},
	}

	if strings.TrimSpace(content) == "" {
		result.Errors = append(result.Errors, "empty file")
		return result, nil
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read header: %v", err))
		return result, nil
	}

	normalizedColumns := make(map[string]bool)
	for _, col := range header {
		normalizedColumns[normalizeColumn(col)] = true
		result.Columns = append(result.Columns, col)
	}

	for _, required := range RequiredColumns {
		if !normalizedColumns[required] {
			result.MissingColumns = append(result.MissingColumns, required)
		}
	}

	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row error: %v", err))
			continue
		}
		result.RowCount++
	}

	result.Valid = len(result.MissingColumns) == 0 && result.RowCount > 0

	return result, nil
}

// CSVValidationResult contains the results of CSV validation.
type CSVValidationResult struct {
	Valid          bool     `json:"valid"`
	RowCount       int      `json:"row_count"`
	Columns        []string `json:"columns"`
	MissingColumns []string `json:"missing_columns"`
	Errors         []string `json:"errors"`
}
