package archive

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Selection is an ordered set of picked records.
type Selection struct {
	order []uuid.UUID
	set   map[uuid.UUID]struct{}
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{set: make(map[uuid.UUID]struct{})}
}

// Toggle adds id if absent or removes it if present. It reports whether id
// is selected afterwards.
func (s *Selection) Toggle(id uuid.UUID) bool {
	if s.Contains(id) {
		s.remove(id)
		return false
	}
	s.Add(id)
	return true
}

// Add selects id. Adding twice keeps the first position.
func (s *Selection) Add(id uuid.UUID) {
	if s.Contains(id) {
		return
	}
	s.set[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *Selection) remove(id uuid.UUID) {
	delete(s.set, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// All selects every record.
func (s *Selection) All(records []*Record) {
	for _, r := range records {
		s.Add(r.ID)
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.order = nil
	s.set = make(map[uuid.UUID]struct{})
}

func (s *Selection) Contains(id uuid.UUID) bool {
	_, ok := s.set[id]
	return ok
}

func (s *Selection) Len() int {
	return len(s.order)
}

// IDs returns the selected ids in the order they were picked.
func (s *Selection) IDs() []uuid.UUID {
	return append([]uuid.UUID(nil), s.order...)
}

// Records returns the selected records in selection order.
func (s *Selection) Records(records []*Record) []*Record {
	byID := make(map[uuid.UUID]*Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	var out []*Record
	for _, id := range s.order {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// SelectRefs adds each record named by a full id or a unique id prefix.
func (s *Selection) SelectRefs(records []*Record, refs ...string) error {
	for _, ref := range refs {
		r, err := Resolve(records, ref)
		if err != nil {
			return err
		}
		s.Add(r.ID)
	}
	return nil
}

// Resolve finds the record whose id is ref or starts with ref.
func Resolve(records []*Record, ref string) (*Record, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	var found *Record
	for _, r := range records {
		id := r.ID.String()
		if id == ref {
			return r, nil
		}
		if strings.HasPrefix(id, ref) {
			if found != nil {
				return nil, fmt.Errorf("%w: %s", ErrAmbiguous, ref)
			}
			found = r
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return found, nil
}
