// Package engine holds the in-memory core: the selection accumulator and the
// cohort totals derived from it.
package engine

import "crmsms/internal/models"

// Selection is the mutable working set of stores accumulated across
// searches. One entry per store code; a re-added store replaces its previous
// entry wholesale and moves to the end of the listing (last write wins).
// Operations are total: unknown keys are no-ops, never errors.
type Selection struct {
	order []string
	rows  map[string]models.StoreRow
}

// NewSelection returns an empty selection with the canonical schema.
func NewSelection() *Selection {
	return &Selection{rows: map[string]models.StoreRow{}}
}

// KeySet builds the key filter used by Add and Remove.
func KeySet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

// Add merges the rows whose store code is in keys. On a duplicate code the
// incoming row replaces the stored one entirely, counts included, even when
// the earlier entry came from a search with different filters. Returns the
// number of distinct stores taken from the input; a code repeated within one
// batch still counts once, with the last occurrence winning.
func (s *Selection) Add(rows []models.StoreRow, keys map[string]struct{}) int {
	seen := map[string]struct{}{}
	for _, row := range rows {
		if _, ok := keys[row.StoreCode]; !ok {
			continue
		}
		if _, exists := s.rows[row.StoreCode]; exists {
			s.dropFromOrder(row.StoreCode)
		}
		s.order = append(s.order, row.StoreCode)
		s.rows[row.StoreCode] = row
		seen[row.StoreCode] = struct{}{}
	}
	return len(seen)
}

// Remove deletes the matching entries. Keys not present are silently
// ignored; removing nothing is a valid no-op. Returns the number removed.
func (s *Selection) Remove(keys map[string]struct{}) int {
	removed := 0
	for code := range keys {
		if _, ok := s.rows[code]; !ok {
			continue
		}
		delete(s.rows, code)
		s.dropFromOrder(code)
		removed++
	}
	return removed
}

// Clear empties the selection. Idempotent.
func (s *Selection) Clear() {
	s.order = nil
	s.rows = map[string]models.StoreRow{}
}

// Rows returns the accumulated entries in listing order. The slice is a
// copy; mutating it does not touch the selection.
func (s *Selection) Rows() []models.StoreRow {
	out := make([]models.StoreRow, 0, len(s.order))
	for _, code := range s.order {
		out = append(out, s.rows[code])
	}
	return out
}

// Codes returns the store codes in listing order.
func (s *Selection) Codes() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len reports the entry count.
func (s *Selection) Len() int { return len(s.rows) }

func (s *Selection) dropFromOrder(code string) {
	for i, c := range s.order {
		if c == code {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
