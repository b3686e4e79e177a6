package matchstore

import (
	"errors"
	"reflect"
	"testing"

	"github.com/raaihank/pdf-redactor/internal/geometry"
)

var box = []geometry.Rect{{X0: 10, Y0: 10, X1: 50, Y1: 20}}

func seeded() *Store {
	s := New()
	s.Append("SSN Full", "123-45-6789", 1, box)
	s.Append("Phone Number", "555-123-4567", 1, box)
	s.Append("SSN Full", "987-65-4321", 2, box)
	return s
}

func ids(matches []Match) []int {
	out := make([]int, len(matches))
	for i, m := range matches {
		out[i] = m.ID
	}
	return out
}

func TestAppend(t *testing.T) {
	s := New()
	for want := 0; want < 3; want++ {
		if id := s.Append("Email", "a@b.io", 1, nil); id != want {
			t.Errorf("Expected id %d, got %d", want, id)
		}
	}
	if !s.IsSelected(2) {
		t.Error("New matches should default to selected")
	}
	if !s.IsSelected(42) {
		t.Error("Unknown ids fall back to selected")
	}

	rects := []geometry.Rect{{X0: 1, Y0: 1, X1: 2, Y1: 2}}
	id := s.Append("Email", "x@y.io", 1, rects)
	rects[0].X0 = 99
	if m, _ := s.Get(id); m.Rects[0].X0 != 1 {
		t.Error("Store should own a copy of the rectangles")
	}
}

func TestSelection(t *testing.T) {
	t.Run("select all and clear all", func(t *testing.T) {
		s := seeded()
		s.ClearAll()
		if got := s.SelectedSubset(); len(got) != 0 {
			t.Errorf("Expected nothing selected, got %v", ids(got))
		}
		s.SelectAll()
		if got := ids(s.SelectedSubset()); !reflect.DeepEqual(got, []int{0, 1, 2}) {
			t.Errorf("Expected every match selected, got %v", got)
		}
		if s.SelectedCount() != 3 {
			t.Errorf("Expected count 3, got %d", s.SelectedCount())
		}
	})

	t.Run("toggle round trip", func(t *testing.T) {
		s := seeded()
		if err := s.Toggle(1, false); err != nil {
			t.Fatalf("Toggle failed: %v", err)
		}
		if got := ids(s.SelectedSubset()); !reflect.DeepEqual(got, []int{0, 2}) {
			t.Errorf("Expected 1 to be deselected, got %v", got)
		}
		if err := s.Toggle(1, true); err != nil {
			t.Fatalf("Toggle failed: %v", err)
		}
		if got := ids(s.SelectedSubset()); !reflect.DeepEqual(got, []int{0, 1, 2}) {
			t.Errorf("Expected membership restored, got %v", got)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		s := seeded()
		for _, id := range []int{-1, 3} {
			if err := s.Toggle(id, true); !errors.Is(err, ErrUnknownMatch) {
				t.Errorf("Toggle(%d): expected ErrUnknownMatch, got %v", id, err)
			}
		}
	})

	t.Run("on page", func(t *testing.T) {
		s := seeded()
		_ = s.Toggle(0, false)
		if got := ids(s.OnPage(1)); !reflect.DeepEqual(got, []int{1}) {
			t.Errorf("Expected only selected matches on page 1, got %v", got)
		}
	})
}

func TestRedactable(t *testing.T) {
	s := seeded()
	s.Append("Email", "ghost@example.com", 1, nil)
	_ = s.Toggle(2, false)

	if got := ids(s.Redactable()); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("Expected selected and resolved matches only, got %v", got)
	}
}

func TestAddManual(t *testing.T) {
	t.Run("one match per page", func(t *testing.T) {
		s := seeded()
		rects := map[int][]geometry.Rect{
			5: {{X0: 1, Y0: 1, X1: 9, Y1: 9}},
			2: {{X0: 1, Y0: 1, X1: 9, Y1: 9}, {X0: 20, Y0: 1, X1: 29, Y1: 9}},
			3: nil,
		}
		added, err := s.AddManual("Jane Doe", rects)
		if err != nil {
			t.Fatalf("AddManual failed: %v", err)
		}
		if !reflect.DeepEqual(added, []int{3, 4}) {
			t.Fatalf("Expected ids [3 4], got %v", added)
		}
		for i, page := range []int{2, 5} {
			m, _ := s.Get(added[i])
			if m.Type != ManualType || m.Page != page || m.Text != "Jane Doe" {
				t.Errorf("Unexpected manual match %+v", m)
			}
			if !s.IsSelected(m.ID) {
				t.Errorf("Manual match %d should be selected", m.ID)
			}
		}
		if m, _ := s.Get(3); len(m.Rects) != 2 {
			t.Errorf("Expected both rects of page 2, got %v", m.Rects)
		}
	})

	t.Run("not found leaves the store unchanged", func(t *testing.T) {
		s := seeded()
		_, err := s.AddManual("nobody", map[int][]geometry.Rect{1: nil})
		if !errors.Is(err, ErrManualTextNotFound) {
			t.Errorf("Expected ErrManualTextNotFound, got %v", err)
		}
		if s.Len() != 3 {
			t.Errorf("Expected 3 matches, got %d", s.Len())
		}
	})

	t.Run("blank text", func(t *testing.T) {
		s := New()
		if _, err := s.AddManual("  ", map[int][]geometry.Rect{1: box}); !errors.Is(err, ErrManualTextNotFound) {
			t.Errorf("Expected ErrManualTextNotFound, got %v", err)
		}
	})
}

func TestGroupByType(t *testing.T) {
	s := seeded()
	_, _ = s.AddManual("Jane", map[int][]geometry.Rect{1: box})
	s.Append("Phone Number", "555-000-1111", 2, box)

	groups := s.GroupByType()
	var types []string
	for _, g := range groups {
		types = append(types, g.Type)
	}
	if !reflect.DeepEqual(types, []string{"SSN Full", "Phone Number", ManualType}) {
		t.Fatalf("Unexpected type order %v", types)
	}
	if got := ids(groups[0].Matches); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("Unexpected SSN group %v", got)
	}
	if got := ids(groups[1].Matches); !reflect.DeepEqual(got, []int{1, 4}) {
		t.Errorf("Unexpected phone group %v", got)
	}
}

func TestDedupe(t *testing.T) {
	s := New()
	s.Append("Date of Birth", "01/02/1990", 1, box)
	s.Append("Generic Date", "01/02/1990", 1, box)
	s.Append("Generic Date", "01/02/1990", 2, box)
	s.Append(ManualType, "01/02/1990", 1, []geometry.Rect{{X0: 10.001, Y0: 10, X1: 50, Y1: 20}})

	if n := s.Dedupe(); n != 2 {
		t.Errorf("Expected 2 duplicates deselected, got %d", n)
	}
	if got := ids(s.SelectedSubset()); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("Expected first occurrences kept, got %v", got)
	}
	if s.Len() != 4 {
		t.Error("Dedupe must not remove matches")
	}
	if n := s.Dedupe(); n != 0 {
		t.Errorf("Expected second dedupe to be a no-op, got %d", n)
	}
}
