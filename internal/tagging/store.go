// Package tagging tracks which candidate tags a user has selected for each
// row of an imported sheet.
//
// Each row's candidate tags are split into two ordered sequences: the tags
// selected so far (in selection order) and the tags still available (in
// candidate order). Only the selected sequence is stored; the available
// sequence is recomputed from the candidates on every query so the two can
// never drift apart.
package tagging

import (
	"errors"
	"fmt"
	"slices"

	"github.com/benvon/tagdesk/internal/importer"
)

var (
	// ErrUnknownRow is returned for a row id that is not in the loaded batch.
	ErrUnknownRow = errors.New("unknown row")
	// ErrUnknownTag is returned when selecting a tag that is not one of the
	// row's candidates.
	ErrUnknownTag = errors.New("tag is not a candidate for row")
)

// PreconditionError reports an operation issued against a row or tag the
// store does not know. Rendered pages only offer loaded rows and their own
// candidates, so this indicates a stale page or a client bug.
type PreconditionError struct {
	RowID string
	Tag   string
	Err   error
}

func (e *PreconditionError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("%v: row %q, tag %q", e.Err, e.RowID, e.Tag)
	}
	return fmt.Sprintf("%v: row %q", e.Err, e.RowID)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// RowView is a render-ready snapshot of one row.
type RowView struct {
	Index     int          `json:"index"`
	Row       importer.Row `json:"row"`
	Available []string     `json:"available"`
	Selected  []string     `json:"selected"`
}

// Store holds the selection state for one loaded batch of rows.
// It is not safe for concurrent use; callers serialize access.
type Store struct {
	rows     []importer.Row
	byID     map[string]int
	selected map[string][]string
}

// NewStore returns an empty selection over rows. Row ids are assumed unique;
// the first occurrence wins otherwise.
func NewStore(rows []importer.Row) *Store {
	byID := make(map[string]int, len(rows))
	for i, r := range rows {
		if _, ok := byID[r.ID]; !ok {
			byID[r.ID] = i
		}
	}
	return &Store{
		rows:     rows,
		byID:     byID,
		selected: make(map[string][]string),
	}
}

// Len returns the number of loaded rows.
func (s *Store) Len() int {
	return len(s.rows)
}

func (s *Store) row(rowID string) (importer.Row, error) {
	i, ok := s.byID[rowID]
	if !ok {
		return importer.Row{}, &PreconditionError{RowID: rowID, Err: ErrUnknownRow}
	}
	return s.rows[i], nil
}

// Select appends tag to the row's selection. Selecting a tag that is
// already selected is a no-op.
func (s *Store) Select(rowID, tag string) error {
	row, err := s.row(rowID)
	if err != nil {
		return err
	}
	if !slices.Contains(row.CandidateTags, tag) {
		return &PreconditionError{RowID: rowID, Tag: tag, Err: ErrUnknownTag}
	}
	if slices.Contains(s.selected[rowID], tag) {
		return nil
	}
	s.selected[rowID] = append(s.selected[rowID], tag)
	return nil
}

// Deselect removes tag from the row's selection if present.
func (s *Store) Deselect(rowID, tag string) error {
	if _, err := s.row(rowID); err != nil {
		return err
	}
	current := s.selected[rowID]
	i := slices.Index(current, tag)
	if i < 0 {
		return nil
	}
	next := slices.Delete(slices.Clone(current), i, i+1)
	if len(next) == 0 {
		delete(s.selected, rowID)
		return nil
	}
	s.selected[rowID] = next
	return nil
}

// Selected returns the row's selected tags in selection order.
func (s *Store) Selected(rowID string) ([]string, error) {
	if _, err := s.row(rowID); err != nil {
		return nil, err
	}
	return append([]string{}, s.selected[rowID]...), nil
}

// Available returns the row's candidate tags that are not selected, in
// candidate order.
func (s *Store) Available(rowID string) ([]string, error) {
	row, err := s.row(rowID)
	if err != nil {
		return nil, err
	}
	return available(row.CandidateTags, s.selected[rowID]), nil
}

// Reset clears the selection of every row.
func (s *Store) Reset() {
	clear(s.selected)
}

// Snapshot returns every row, in load order, with its current partition.
func (s *Store) Snapshot() []RowView {
	views := make([]RowView, len(s.rows))
	for i, r := range s.rows {
		selected := s.selected[r.ID]
		views[i] = RowView{
			Index:     i + 1,
			Row:       r,
			Available: available(r.CandidateTags, selected),
			Selected:  append([]string{}, selected...),
		}
	}
	return views
}

func available(candidates, selected []string) []string {
	out := make([]string, 0, len(candidates))
	for _, tag := range candidates {
		if !slices.Contains(selected, tag) {
			out = append(out, tag)
		}
	}
	return out
}
