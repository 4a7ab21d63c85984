package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	apperrors "github.com/urpt/student-rotation-service/internal/errors"
)

// Encoding of uploaded CSV files.
type Encoding string

const (
	EncodingUTF8        Encoding = "utf-8"
	EncodingWindows1252 Encoding = "windows-1252"
)

// ParseEncoding maps a configuration value to an Encoding.
func ParseEncoding(value string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "utf-8", "utf8":
		return EncodingUTF8, nil
	case "windows-1252", "cp1252":
		return EncodingWindows1252, nil
	default:
		return "", fmt.Errorf("unsupported CSV encoding %q", value)
	}
}

// Parsed is the parser output.
type Parsed struct {
	Headers []string     `json:"headers"`
	Rows    []Row        `json:"rows"`
	Total   int          `json:"total"`
	Dropped []DroppedRow `json:"dropped,omitempty"`
}

// MissingColumns lists required headers absent from the file.
func (p *Parsed) MissingColumns() []string {
	present := make(map[string]struct{}, len(p.Headers))
	for _, h := range p.Headers {
		present[h] = struct{}{}
	}
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

type Parser struct {
	encoding Encoding
}

type ParserOption func(*Parser)

// WithEncoding decodes CSV input from the given encoding.
func WithEncoding(e Encoding) ParserOption {
	return func(p *Parser) {
		p.encoding = e
	}
}

func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{encoding: EncodingUTF8}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile opens path and parses it.
func (p *Parser) ParseFile(path string) (*Parsed, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, "CSV file not found", err)
		}
		return nil, apperrors.Wrap(apperrors.CodeNotFound, "CSV file could not be opened", err)
	}
	defer f.Close()

	return p.Parse(f, filepath.Base(path))
}

// Parse reads r as CSV, or as XLSX when name has a spreadsheet extension.
func (p *Parser) Parse(r io.Reader, name string) (*Parsed, error) {
	if r == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "CSV file not found")
	}
	if IsSpreadsheet(name) {
		return p.parseXLSX(r)
	}
	return p.parseCSV(r)
}

// IsSpreadsheet reports whether name should be read as an Excel workbook.
func IsSpreadsheet(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}

func (p *Parser) parseCSV(r io.Reader) (*Parsed, error) {
	if p.encoding == EncodingWindows1252 {
		r = charmap.Windows1252.NewDecoder().Reader(r)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.New(apperrors.CodeInvalidFormat, "CSV file is empty")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidFormat, "failed to read CSV header", err)
	}
	lastLine := recordEnd(reader, headers)
	headers = cleanHeaders(headers)

	// Rows are numbered by the file line they start on. The csv reader
	// skips empty lines, so each gap before a record is recorded as a
	// dropped blank line. Empty lines after the last record are ignored.
	parsed := &Parsed{Headers: headers, Rows: []Row{}}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidFormat, "failed to read CSV", err)
		}
		start, _ := reader.FieldPos(0)
		for line := lastLine + 1; line < start; line++ {
			parsed.Dropped = append(parsed.Dropped, DroppedRow{Number: line, FieldCount: 0, Expected: len(headers)})
		}
		parsed.accept(start, record)
		lastLine = recordEnd(reader, record)
	}

	parsed.Total = len(parsed.Rows)
	return parsed, nil
}

func (p *Parser) parseXLSX(r io.Reader) (*Parsed, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidFormat, "failed to open Excel file", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidFormat, "Excel file has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidFormat, "failed to read Excel rows", err)
	}
	if len(records) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidFormat, "Excel file is empty")
	}

	headers := cleanHeaders(records[0])
	parsed := &Parsed{Headers: headers, Rows: []Row{}}

	for i, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		// Spreadsheets omit trailing empty cells, so short rows are padded.
		if len(record) < len(headers) {
			padded := make([]string, len(headers))
			copy(padded, record)
			record = padded
		}
		parsed.accept(i+2, record)
	}

	parsed.Total = len(parsed.Rows)
	return parsed, nil
}

func (p *Parsed) accept(number int, record []string) {
	if len(record) != len(p.Headers) {
		p.Dropped = append(p.Dropped, DroppedRow{
			Number:     number,
			FieldCount: len(record),
			Expected:   len(p.Headers),
		})
		return
	}
	p.Rows = append(p.Rows, newRow(number, p.Headers, record))
}

// recordEnd is the line on which the record just read ends; quoted fields
// may span lines.
func recordEnd(reader *csv.Reader, record []string) int {
	last := len(record) - 1
	line, _ := reader.FieldPos(last)
	return line + strings.Count(record[last], "\n")
}

func cleanHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for i, h := range raw {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		headers[i] = strings.TrimSpace(h)
	}
	return headers
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
