package vouch

import (
	"reflect"
	"testing"
)

func TestSelection_FirstMatchSelectsAll(t *testing.T) {
	s := NewSelection()
	s.Reconcile([]string{"c-1", "c-2", "c-3"})

	if got := s.IDs(); !reflect.DeepEqual(got, []string{"c-1", "c-2", "c-3"}) {
		t.Errorf("Expected all matches selected, got %v", got)
	}
}

func TestSelection_RematchIntersectsOnly(t *testing.T) {
	s := NewSelection()
	s.Reconcile([]string{"c-1", "c-2", "c-3"})

	// User narrows the date range; c-3 no longer matches, c-4 is new.
	s.Reconcile([]string{"c-1", "c-2", "c-4"})

	if s.Has("c-3") {
		t.Error("Expected dropped claim to be deselected")
	}
	if s.Has("c-4") {
		t.Error("Expected new claim to stay unselected after the first choice")
	}
	if got := s.IDs(); !reflect.DeepEqual(got, []string{"c-1", "c-2"}) {
		t.Errorf("Expected intersection, got %v", got)
	}
}

func TestSelection_DeselectedNeverReappears(t *testing.T) {
	s := NewSelection()
	s.Reconcile([]string{"c-1", "c-2"})
	s.Deselect("c-2")

	s.Reconcile([]string{"c-1", "c-2"})
	if s.Has("c-2") {
		t.Error("Expected deselected claim to stay deselected across re-matches")
	}
}

func TestSelection_ManualOpsMarkChosen(t *testing.T) {
	s := NewSelection()
	s.Select("c-9")

	// The user acted before any match, so the next reconcile must not
	// auto-select everything.
	s.Reconcile([]string{"c-9", "c-10"})
	if s.Has("c-10") {
		t.Error("Expected reconcile after manual select to intersect, not add")
	}
}

func TestSelection_SelectAllAndClear(t *testing.T) {
	s := NewSelection()
	s.SelectAll([]string{"a", "b"})
	if got := s.IDs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Unexpected ids: %v", got)
	}

	s.Clear()
	if len(s.IDs()) != 0 {
		t.Errorf("Expected empty selection, got %v", s.IDs())
	}

	// Cleared is still a choice; a re-match must not re-select.
	s.Reconcile([]string{"a", "b"})
	if len(s.IDs()) != 0 {
		t.Errorf("Expected empty selection after reconcile, got %v", s.IDs())
	}
}

func TestSelection_LoadedFromPersistedNeverAutoSelects(t *testing.T) {
	s := LoadSelection([]string{"c-1"})
	s.Reconcile([]string{"c-1", "c-2", "c-3"})

	if got := s.IDs(); !reflect.DeepEqual(got, []string{"c-1"}) {
		t.Errorf("Expected persisted selection preserved, got %v", got)
	}
}

func TestSelection_Changed(t *testing.T) {
	fresh := NewSelection()
	if !fresh.Changed() {
		t.Error("Expected a new selection to count as changed")
	}

	loaded := LoadSelection([]string{"c-1", "c-2"})
	if loaded.Changed() {
		t.Error("Expected untouched loaded selection to be unchanged")
	}

	loaded.Deselect("c-2")
	if !loaded.Changed() {
		t.Error("Expected deselect to mark selection changed")
	}

	loaded.Select("c-2")
	if loaded.Changed() {
		t.Error("Expected restoring the baseline set to be unchanged")
	}
}
