// Package importer parses, validates and executes bulk rotation imports.
package importer

import (
	"time"

	apperrors "github.com/urpt/student-rotation-service/internal/errors"
)

// Column headers of the import file.
const (
	ColumnLocationTitle = "Location Title"
	ColumnBrand         = "Brand"
	ColumnStartDate     = "Rotation Start Date"
	ColumnEndDate       = "Rotation End Date"
	ColumnDescription   = "Description"
	ColumnEligibility   = "Eligibility Criteria"
	ColumnOnboarding    = "Onboarding Requirements"
)

// RequiredColumns must be present in every import file, in any order.
var RequiredColumns = []string{
	ColumnLocationTitle,
	ColumnBrand,
	ColumnStartDate,
	ColumnEndDate,
	ColumnDescription,
}

// OptionalColumns may be present.
var OptionalColumns = []string{
	ColumnEligibility,
	ColumnOnboarding,
}

// Row is one accepted data line. Fields keeps the raw values keyed by the
// trimmed header; the named fields are the same values, untrimmed.
type Row struct {
	Number int               `json:"row_number"`
	Fields map[string]string `json:"fields"`

	LocationTitle string `json:"location_title"`
	Brand         string `json:"brand"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Description   string `json:"description"`
	Eligibility   string `json:"eligibility,omitempty"`
	Onboarding    string `json:"onboarding,omitempty"`
}

func newRow(number int, headers, values []string) Row {
	fields := make(map[string]string, len(headers))
	for i, header := range headers {
		fields[header] = values[i]
	}
	return Row{
		Number:        number,
		Fields:        fields,
		LocationTitle: fields[ColumnLocationTitle],
		Brand:         fields[ColumnBrand],
		StartDate:     fields[ColumnStartDate],
		EndDate:       fields[ColumnEndDate],
		Description:   fields[ColumnDescription],
		Eligibility:   fields[ColumnEligibility],
		Onboarding:    fields[ColumnOnboarding],
	}
}

// DroppedRow records a data line skipped because its field count did not
// match the header.
type DroppedRow struct {
	Number     int `json:"row_number"`
	FieldCount int `json:"field_count"`
	Expected   int `json:"expected"`
}

// Issue is one validation message attached to a row.
type Issue struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

// ValidatedRow is a row with its verdict.
type ValidatedRow struct {
	Row        Row        `json:"row"`
	LocationID *uint      `json:"location_id,omitempty"`
	Start      *time.Time `json:"start_date,omitempty"`
	End        *time.Time `json:"end_date,omitempty"`
	Errors     []Issue    `json:"errors,omitempty"`
	Warnings   []Issue    `json:"warnings,omitempty"`
}

// Importable reports whether the row carries no hard errors.
func (v ValidatedRow) Importable() bool {
	return len(v.Errors) == 0
}

// Messages returns the row's error and warning messages.
func (v ValidatedRow) Messages() (errs []string, warnings []string) {
	for _, issue := range v.Errors {
		errs = append(errs, issue.Message)
	}
	for _, issue := range v.Warnings {
		warnings = append(warnings, issue.Message)
	}
	return errs, warnings
}

func (v *ValidatedRow) fail(code apperrors.Code, message string) {
	v.Errors = append(v.Errors, Issue{Code: code, Message: message})
}

func (v *ValidatedRow) warn(message string) {
	v.Warnings = append(v.Warnings, Issue{Message: message})
}

// Batch is the partition of one upload's rows.
type Batch struct {
	FileName        string         `json:"file_name"`
	ReplaceExisting bool           `json:"replace_existing"`
	TotalRows       int            `json:"total_rows"`
	Valid           []ValidatedRow `json:"valid"`
	Warnings        []ValidatedRow `json:"warnings"`
	Errors          []ValidatedRow `json:"errors"`
	Dropped         []DroppedRow   `json:"dropped,omitempty"`
	MissingColumns  []string       `json:"missing_columns,omitempty"`
}

// Len is the number of validated rows across all buckets.
func (b *Batch) Len() int {
	return len(b.Valid) + len(b.Warnings) + len(b.Errors)
}

// Importable returns the rows to hand to the executor: the valid bucket,
// followed by the warnings bucket when includeWarnings is set.
func (b *Batch) Importable(includeWarnings bool) []ValidatedRow {
	rows := make([]ValidatedRow, 0, len(b.Valid)+len(b.Warnings))
	rows = append(rows, b.Valid...)
	if includeWarnings {
		rows = append(rows, b.Warnings...)
	}
	return rows
}

// CanConfirm reports whether anything in the batch could be imported.
func (b *Batch) CanConfirm() bool {
	return len(b.Valid) > 0 || len(b.Warnings) > 0
}

type CreatedRow struct {
	Row   int    `json:"row"`
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

type FailedRow struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// Result is the outcome of one execution.
type Result struct {
	Created []CreatedRow `json:"created"`
	Failed  []FailedRow  `json:"failed"`
	Purged  int          `json:"purged"`
}
