package recognizer

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PersonRecord is one enrolled identity. BackendLabel references the entry
// the active backend keeps for this person; only the backend interprets it.
type PersonRecord struct {
	ID           string
	Name         string
	CreatedAt    time.Time
	SampleCount  int
	BackendLabel int64
}

// Roster is the authoritative in-memory list of enrolled persons, bounded by
// capacity and ordered by insertion. Pure bookkeeping, no I/O.
type Roster struct {
	capacity int
	records  []*PersonRecord
}

func NewRoster(capacity int) *Roster {
	return &Roster{capacity: capacity}
}

// removeDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// normalizeName normalizes a person name for comparison (lowercase, no
// diacritics, spaces for dashes). Display names keep their original form.
func normalizeName(name string) string {
	name = removeDiacritics(name)
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "-", " ")
	return name
}

// Add inserts a record, failing when the roster is full or the name is taken.
func (r *Roster) Add(rec *PersonRecord) error {
	if len(r.records) >= r.capacity {
		return fmt.Errorf("%w: %d of %d slots used", ErrCapacityExceeded, len(r.records), r.capacity)
	}
	if r.ContainsName(rec.Name) {
		return fmt.Errorf("%w: %q", ErrDuplicateName, rec.Name)
	}
	r.records = append(r.records, rec)
	return nil
}

// Remove deletes the record with the given id, keeping insertion order intact.
func (r *Roster) Remove(id string) error {
	for i, rec := range r.records {
		if rec.ID == id {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Get returns the record with the given id, or nil.
func (r *Roster) Get(id string) *PersonRecord {
	for _, rec := range r.records {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

// ByLabel resolves a backend label to its record, or nil.
func (r *Roster) ByLabel(label int64) *PersonRecord {
	for _, rec := range r.records {
		if rec.BackendLabel == label {
			return rec
		}
	}
	return nil
}

// List returns the records in insertion order.
func (r *Roster) List() []*PersonRecord {
	out := make([]*PersonRecord, len(r.records))
	copy(out, r.records)
	return out
}

// ContainsName reports whether a name is already taken. Comparison ignores
// case and diacritics so "Jiri" cannot join a roster holding "Jiří".
func (r *Roster) ContainsName(name string) bool {
	want := normalizeName(name)
	for _, rec := range r.records {
		if normalizeName(rec.Name) == want {
			return true
		}
	}
	return false
}

func (r *Roster) Clear() {
	r.records = nil
}

func (r *Roster) Len() int {
	return len(r.records)
}

// Available returns the number of free slots.
func (r *Roster) Available() int {
	return r.capacity - len(r.records)
}
