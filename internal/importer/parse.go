package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// DefaultMaxBytes bounds an upload when the caller does not set a limit.
const DefaultMaxBytes int64 = 5 << 20

// AcceptedExtensions lists the extensions offered by the upload picker.
var AcceptedExtensions = []string{".csv", ".xlsx"}

// Parser reads uploaded tag sheets.
type Parser struct {
	MaxBytes int64
	now      func() time.Time
}

// NewParser returns a parser that rejects files larger than maxBytes.
func NewParser(maxBytes int64) *Parser {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Parser{MaxBytes: maxBytes, now: time.Now}
}

// DetectFormat maps a file name to a sheet format by extension.
// Legacy binary .xls workbooks are rejected explicitly.
func DetectFormat(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return "", fmt.Errorf("%w: legacy .xls workbooks are not supported, save the sheet as .xlsx or .csv", ErrUnsupportedFormat)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

// Parse reads the whole file and returns its rows. On any error no rows are
// returned.
func (p *Parser) Parse(fileName string, r io.Reader) (*Batch, error) {
	format, err := DetectFormat(fileName)
	if err != nil {
		return nil, newParseError(fileName, 0, err, "%v", err)
	}

	data, err := io.ReadAll(io.LimitReader(r, p.MaxBytes+1))
	if err != nil {
		return nil, newParseError(fileName, 0, err, "failed to read file: %v", err)
	}
	if int64(len(data)) > p.MaxBytes {
		return nil, newParseError(fileName, 0, ErrTooLarge, "file exceeds %d bytes", p.MaxBytes)
	}

	var records [][]string
	switch format {
	case FormatCSV:
		records, err = readCSV(data)
	case FormatXLSX:
		records, err = readXLSX(data)
	}
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.FileName = fileName
			return nil, pe
		}
		return nil, newParseError(fileName, 0, err, "%v", err)
	}

	rows, err := rowsFromRecords(records)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.FileName = fileName
		}
		return nil, err
	}

	return &Batch{
		FileName: filepath.Base(fileName),
		Format:   format,
		Rows:     rows,
		ParsedAt: p.now().UTC(),
	}, nil
}

// ParseCSV parses delimited text with a header row.
func ParseCSV(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, newParseError("", 0, err, "failed to read file: %v", err)
	}
	records, err := readCSV(data)
	if err != nil {
		return nil, err
	}
	return rowsFromRecords(records)
}

// ParseXLSX parses the first worksheet of an .xlsx workbook.
func ParseXLSX(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, newParseError("", 0, err, "failed to read file: %v", err)
	}
	records, err := readXLSX(data)
	if err != nil {
		return nil, err
	}
	return rowsFromRecords(records)
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return nil, newParseError("", 0, nil, "file is not valid UTF-8 text")
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				line = csvErr.Line
			}
			return nil, newParseError("", line, err, "malformed CSV: %v", err)
		}
		records = append(records, record)
	}
	return records, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, newParseError("", 0, err, "unreadable workbook: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, newParseError("", 0, ErrEmptyFile, "workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, newParseError("", 0, err, "failed to read sheet %q: %v", sheets[0], err)
	}
	return records, nil
}

// rowsFromRecords maps raw records (header first) onto rows. Records whose
// cells are all blank are skipped.
func rowsFromRecords(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, newParseError("", 0, ErrEmptyFile, "file has no header row")
	}

	index := headerIndex(records[0])
	for _, required := range []string{ColumnID, ColumnLinks, ColumnPrefix} {
		if _, ok := index[required]; !ok {
			return nil, newParseError("", 1, ErrMissingHeader, "missing required column %q", required)
		}
	}

	rows := make([]Row, 0, len(records)-1)
	seen := make(map[string]int, len(records)-1)
	for i, record := range records[1:] {
		line := i + 2
		if blankRecord(record) {
			continue
		}
		row := Row{
			ID:            cell(record, index, ColumnID),
			Link:          cell(record, index, ColumnLinks),
			Prefix:        cell(record, index, ColumnPrefix),
			CandidateTags: SplitTags(cell(record, index, ColumnSelectTags)),
		}
		if first, dup := seen[row.ID]; dup {
			return nil, newParseError("", line, ErrDuplicateID, "row id %q already used on line %d", row.ID, first)
		}
		seen[row.ID] = line
		rows = append(rows, row)
	}
	return rows, nil
}

func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		if _, exists := index[name]; !exists {
			index[name] = i
		}
	}
	return index
}

func cell(record []string, index map[string]int, column string) string {
	i, ok := index[column]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
