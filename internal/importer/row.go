// Package importer turns an uploaded tag sheet into ordered row records.
//
// A tag sheet is tabular data with a header row naming the columns
// "id", "links", "prefix" and, optionally, "select tags". Header names are
// matched case-sensitively. The "select tags" cell holds a comma-separated
// list of candidate tags for the row.
package importer

import (
	"strings"
	"time"
)

// Column headers of a tag sheet.
const (
	ColumnID         = "id"
	ColumnLinks      = "links"
	ColumnPrefix     = "prefix"
	ColumnSelectTags = "select tags"
)

// Format identifies the file type of an uploaded sheet.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Row is one parsed line of a tag sheet. It is never modified after parse.
type Row struct {
	ID            string   `json:"id"`
	Link          string   `json:"link"`
	Prefix        string   `json:"prefix"`
	CandidateTags []string `json:"candidate_tags"`
}

// Batch is the result of parsing one uploaded file.
type Batch struct {
	FileName string    `json:"file_name"`
	Format   Format    `json:"format"`
	Rows     []Row     `json:"rows"`
	ParsedAt time.Time `json:"parsed_at"`
}

// SplitTags splits a "select tags" cell on commas and trims each piece.
// Empty pieces produced by doubled or trailing commas are kept as-is and
// repeated tags are not collapsed. A blank cell yields an empty slice,
// including one holding only whitespace, where a literal split would give [""].
func SplitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, len(parts))
	for i, p := range parts {
		tags[i] = strings.TrimSpace(p)
	}
	return tags
}
