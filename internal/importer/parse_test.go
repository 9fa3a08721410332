package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSplitTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"trims each piece", "a, b ,c", []string{"a", "b", "c"}},
		{"single tag", "red", []string{"red"}},
		{"blank cell", "", []string{}},
		{"whitespace only", "   ", []string{}},
		{"keeps empty pieces", "a,,b", []string{"a", "", "b"}},
		{"keeps trailing empty piece", "a,b,", []string{"a", "b", ""}},
		{"keeps duplicates", "a,a", []string{"a", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SplitTags(tt.raw)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SplitTags(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    []Row
		wantErr error
	}{
		{
			name: "row count and raw cell values",
			input: "id,links,prefix,select tags\n" +
				"1,http://x,p1,\"red,blue\"\n" +
				"2,http://y,p2,green\n",
			want: []Row{
				{ID: "1", Link: "http://x", Prefix: "p1", CandidateTags: []string{"red", "blue"}},
				{ID: "2", Link: "http://y", Prefix: "p2", CandidateTags: []string{"green"}},
			},
		},
		{
			name:  "header names with surrounding spaces",
			input: "id, links, prefix, select tags\n7,l,p,\"a, b ,c\"\n",
			want: []Row{
				{ID: "7", Link: "l", Prefix: "p", CandidateTags: []string{"a", "b", "c"}},
			},
		},
		{
			name:  "no select tags column",
			input: "id,links,prefix\n1,http://x,p1\n",
			want: []Row{
				{ID: "1", Link: "http://x", Prefix: "p1", CandidateTags: []string{}},
			},
		},
		{
			name:  "short record leaves missing cells empty",
			input: "id,links,prefix,select tags\n1\n",
			want: []Row{
				{ID: "1", CandidateTags: []string{}},
			},
		},
		{
			name:  "column order follows header",
			input: "select tags,prefix,id,links\n\"x,y\",pre,9,http://z\n",
			want: []Row{
				{ID: "9", Link: "http://z", Prefix: "pre", CandidateTags: []string{"x", "y"}},
			},
		},
		{
			name:  "byte order mark on first header",
			input: "\xef\xbb\xbfid,links,prefix\n1,a,b\n",
			want: []Row{
				{ID: "1", Link: "a", Prefix: "b", CandidateTags: []string{}},
			},
		},
		{
			name:  "blank trailing lines skipped",
			input: "id,links,prefix\n1,a,b\n,,\n\n",
			want: []Row{
				{ID: "1", Link: "a", Prefix: "b", CandidateTags: []string{}},
			},
		},
		{
			name:  "header only",
			input: "id,links,prefix,select tags\n",
			want:  []Row{},
		},
		{
			name:    "empty file",
			input:   "",
			wantErr: ErrEmptyFile,
		},
		{
			name:    "header names are case sensitive",
			input:   "ID,Links,Prefix\n1,a,b\n",
			wantErr: ErrMissingHeader,
		},
		{
			name:    "duplicate id",
			input:   "id,links,prefix\n1,a,b\n1,c,d\n",
			wantErr: ErrDuplicateID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCSV(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseCSV mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCSV_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantLine int
	}{
		{"stray quote in quoted field", "id,links,prefix\n1,a,b\n2,\"c\"x,d\n", 3},
		{"unterminated quote", "id,links,prefix\n1,a,\"b\n", 2},
		{"invalid utf-8", "id,links,prefix\n1,\xff\xfe,b\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rows, err := ParseCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Nil(t, rows)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			if tt.wantLine > 0 {
				assert.GreaterOrEqual(t, pe.Line, tt.wantLine)
			}
		})
	}
}

func TestParser_Parse(t *testing.T) {
	t.Parallel()

	p := NewParser(0)
	batch, err := p.Parse("uploads/sheet.CSV", strings.NewReader("id,links,prefix,select tags\n1,http://x,p1,\"red,blue\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "sheet.CSV", batch.FileName)
	assert.Equal(t, FormatCSV, batch.Format)
	assert.False(t, batch.ParsedAt.IsZero())
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, []string{"red", "blue"}, batch.Rows[0].CandidateTags)
}

func TestParser_ParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fileName string
		input    string
		maxBytes int64
		wantErr  error
	}{
		{"legacy xls", "sheet.xls", "whatever", 0, ErrUnsupportedFormat},
		{"unknown extension", "sheet.txt", "id,links,prefix\n", 0, ErrUnsupportedFormat},
		{"too large", "sheet.csv", "id,links,prefix\n1,a,b\n", 8, ErrTooLarge},
		{"missing header", "sheet.csv", "id,links\n1,a\n", 0, ErrMissingHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			batch, err := NewParser(tt.maxBytes).Parse(tt.fileName, strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Nil(t, batch)
			assert.ErrorIs(t, err, tt.wantErr)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.fileName, pe.FileName)
			assert.Contains(t, pe.Error(), tt.fileName)
		})
	}
}

func TestParser_ParseXLSX(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"id", "links", "prefix", "select tags"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"1", "http://x", "p1", "red, blue"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"2", "http://y", "p2"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	batch, err := NewParser(0).Parse("sheet.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, batch.Format)

	want := []Row{
		{ID: "1", Link: "http://x", Prefix: "p1", CandidateTags: []string{"red", "blue"}},
		{ID: "2", Link: "http://y", Prefix: "p2", CandidateTags: []string{}},
	}
	if diff := cmp.Diff(want, batch.Rows); diff != "" {
		t.Errorf("xlsx rows mismatch (-want +got):\n%s", diff)
	}

	direct, err := ParseXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	if diff := cmp.Diff(want, direct); diff != "" {
		t.Errorf("ParseXLSX rows mismatch (-want +got):\n%s", diff)
	}
}

func TestParser_ParseXLSX_Corrupt(t *testing.T) {
	t.Parallel()

	_, err := NewParser(0).Parse("sheet.xlsx", strings.NewReader("not a zip archive"))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "sheet.xlsx", pe.FileName)
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"a.csv", FormatCSV, false},
		{"A.CSV", FormatCSV, false},
		{"b.xlsx", FormatXLSX, false},
		{"c.xls", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DetectFormat(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
