// Package matchstore holds the matches found in one document together with their selection.
//
// The store is append-only: a match's ID is its position at insertion time and is never
// reused or renumbered. Removing matches would break that contract and needs a real
// generational ID first.
package matchstore

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/raaihank/pdf-redactor/internal/geometry"
)

// ManualType is the type of matches added from user-supplied text.
const ManualType = "Manual"

var (
	ErrManualTextNotFound = errors.New("text not found in document")
	ErrUnknownMatch       = errors.New("unknown match")
)

const rectEpsilon = 0.01

// Match is one occurrence of PII on one page.
type Match struct {
	ID    int             `json:"id"`
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Page  int             `json:"page"`
	Rects []geometry.Rect `json:"rects"`
}

// Resolved reports whether the match was located on its page.
func (m Match) Resolved() bool {
	return len(m.Rects) > 0
}

// TypeGroup lists the matches of one type.
type TypeGroup struct {
	Type    string  `json:"type"`
	Matches []Match `json:"matches"`
}

// Store is not safe for concurrent use; sessions serialise access to it.
type Store struct {
	matches  []Match
	selected []bool
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Append stores a match, selected, and returns its ID.
func (s *Store) Append(typ, text string, page int, rects []geometry.Rect) int {
	id := len(s.matches)
	s.matches = append(s.matches, Match{
		ID:    id,
		Type:  typ,
		Text:  text,
		Page:  page,
		Rects: append([]geometry.Rect(nil), rects...),
	})
	s.selected = append(s.selected, true)
	return id
}

// Len returns the number of stored matches.
func (s *Store) Len() int {
	return len(s.matches)
}

// Matches returns every match in insertion order.
func (s *Store) Matches() []Match {
	return append([]Match(nil), s.matches...)
}

// Get returns the match with the given ID.
func (s *Store) Get(id int) (Match, error) {
	if id < 0 || id >= len(s.matches) {
		return Match{}, fmt.Errorf("%w: %d", ErrUnknownMatch, id)
	}
	return s.matches[id], nil
}

// IsSelected reports the selection of id. Unknown IDs read as selected.
func (s *Store) IsSelected(id int) bool {
	if id < 0 || id >= len(s.selected) {
		return true
	}
	return s.selected[id]
}

// Toggle sets the selection of one match.
func (s *Store) Toggle(id int, selected bool) error {
	if id < 0 || id >= len(s.matches) {
		return fmt.Errorf("%w: %d", ErrUnknownMatch, id)
	}
	s.selected[id] = selected
	return nil
}

// SelectAll selects every match.
func (s *Store) SelectAll() {
	for i := range s.selected {
		s.selected[i] = true
	}
}

// ClearAll deselects every match.
func (s *Store) ClearAll() {
	for i := range s.selected {
		s.selected[i] = false
	}
}

// SelectedSubset returns the selected matches in insertion order.
func (s *Store) SelectedSubset() []Match {
	var out []Match
	for i, m := range s.matches {
		if s.selected[i] {
			out = append(out, m)
		}
	}
	return out
}

// SelectedCount returns how many matches are selected.
func (s *Store) SelectedCount() int {
	n := 0
	for _, sel := range s.selected {
		if sel {
			n++
		}
	}
	return n
}

// Redactable returns the selected matches that have at least one rectangle.
func (s *Store) Redactable() []Match {
	var out []Match
	for _, m := range s.SelectedSubset() {
		if m.Resolved() {
			out = append(out, m)
		}
	}
	return out
}

// AddManual appends one selected Manual match per page that contains text, in page order.
// rectsPerPage holds the rectangles found on each page; pages without any are skipped.
func (s *Store) AddManual(text string, rectsPerPage map[int][]geometry.Rect) ([]int, error) {
	text = strings.TrimSpace(text)
	pages := make([]int, 0, len(rectsPerPage))
	for page, rects := range rectsPerPage {
		if len(rects) > 0 {
			pages = append(pages, page)
		}
	}
	if text == "" || len(pages) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrManualTextNotFound, text)
	}
	sort.Ints(pages)

	ids := make([]int, 0, len(pages))
	for _, page := range pages {
		ids = append(ids, s.Append(ManualType, text, page, rectsPerPage[page]))
	}
	return ids, nil
}

// GroupByType groups matches by type, types in first-seen order.
func (s *Store) GroupByType() []TypeGroup {
	index := make(map[string]int)
	var groups []TypeGroup
	for _, m := range s.matches {
		i, ok := index[m.Type]
		if !ok {
			i = len(groups)
			index[m.Type] = i
			groups = append(groups, TypeGroup{Type: m.Type})
		}
		groups[i].Matches = append(groups[i].Matches, m)
	}
	return groups
}

// OnPage returns the selected matches on page.
func (s *Store) OnPage(page int) []Match {
	var out []Match
	for _, m := range s.SelectedSubset() {
		if m.Page == page {
			out = append(out, m)
		}
	}
	return out
}

// Dedupe deselects every match whose page, text and rectangles repeat an earlier match.
// Nothing is removed, so IDs stay stable. It returns the number of matches deselected.
func (s *Store) Dedupe() int {
	n := 0
	for i := range s.matches {
		if !s.selected[i] {
			continue
		}
		for j := 0; j < i; j++ {
			if sameTarget(s.matches[j], s.matches[i]) {
				s.selected[i] = false
				n++
				break
			}
		}
	}
	return n
}

func sameTarget(a, b Match) bool {
	if a.Page != b.Page || a.Text != b.Text || len(a.Rects) != len(b.Rects) {
		return false
	}
	for i := range a.Rects {
		if !a.Rects[i].ApproxEqual(b.Rects[i], rectEpsilon) {
			return false
		}
	}
	return true
}
