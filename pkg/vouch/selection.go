package vouch

import "sort"

// Selection tracks which matched claims are selected for linking while
// an evidence item is being authored or edited.
//
// A brand-new item auto-selects everything on its first successful
// match, then treats the user as having chosen: later re-matches only
// intersect the current selection with the new match set, so claims the
// user deselected never silently reappear, and claims that stopped
// matching are dropped. An item loaded for editing starts from its
// persisted claim links instead and never auto-selects.
type Selection struct {
	ids      map[string]struct{}
	chosen   bool
	baseline map[string]struct{}
}

// NewSelection returns an empty selection for a new evidence item.
func NewSelection() *Selection {
	return &Selection{ids: map[string]struct{}{}}
}

// LoadSelection returns a selection seeded from persisted claim links
// for an evidence item being edited. The persisted set becomes the
// baseline for Changed.
func LoadSelection(persisted []string) *Selection {
	s := &Selection{
		ids:      map[string]struct{}{},
		chosen:   true,
		baseline: map[string]struct{}{},
	}
	for _, id := range persisted {
		s.ids[id] = struct{}{}
		s.baseline[id] = struct{}{}
	}
	return s
}

// Reconcile folds a fresh match-id set into the selection. The first
// reconcile of a new item selects all matches; every later one keeps
// only previously selected ids that still match.
func (s *Selection) Reconcile(matchedIDs []string) {
	if !s.chosen {
		for _, id := range matchedIDs {
			s.ids[id] = struct{}{}
		}
		s.chosen = true
		return
	}

	matched := make(map[string]struct{}, len(matchedIDs))
	for _, id := range matchedIDs {
		matched[id] = struct{}{}
	}
	for id := range s.ids {
		if _, ok := matched[id]; !ok {
			delete(s.ids, id)
		}
	}
}

// Select adds a single claim id.
func (s *Selection) Select(id string) {
	s.ids[id] = struct{}{}
	s.chosen = true
}

// Deselect removes a single claim id.
func (s *Selection) Deselect(id string) {
	delete(s.ids, id)
	s.chosen = true
}

// SelectAll replaces the selection with the given ids.
func (s *Selection) SelectAll(ids []string) {
	s.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	s.chosen = true
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.ids = map[string]struct{}{}
	s.chosen = true
}

// Has reports whether the claim id is selected.
func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// IDs returns the selected claim ids in sorted order.
func (s *Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Changed reports whether the selection differs from its persisted
// baseline, compared as sets. A selection without a baseline (a new
// item) always counts as changed, so a create persists it.
func (s *Selection) Changed() bool {
	if s.baseline == nil {
		return true
	}
	if len(s.ids) != len(s.baseline) {
		return true
	}
	for id := range s.ids {
		if _, ok := s.baseline[id]; !ok {
			return true
		}
	}
	return false
}
