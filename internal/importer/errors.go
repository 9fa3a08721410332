package importer

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for file types the importer cannot read.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrMissingHeader is returned when a required column header is absent.
	ErrMissingHeader = errors.New("missing required column")
	// ErrDuplicateID is returned when two data rows share an id.
	ErrDuplicateID = errors.New("duplicate row id")
	// ErrEmptyFile is returned when the file has no header row.
	ErrEmptyFile = errors.New("file is empty")
	// ErrTooLarge is returned when the upload exceeds the configured size.
	ErrTooLarge = errors.New("file too large")
)

// ParseError describes why an uploaded file could not be turned into rows.
// Line is the 1-based source line (or sheet row) when known, 0 otherwise.
type ParseError struct {
	FileName string
	Line     int
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	loc := e.FileName
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.FileName, e.Line)
	}
	if loc == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", loc, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(fileName string, line int, err error, format string, args ...any) *ParseError {
	return &ParseError{
		FileName: fileName,
		Line:     line,
		Reason:   fmt.Sprintf(format, args...),
		Err:      err,
	}
}
