package inventory

import (
	"strings"
	"time"

	"github.com/ahinestrog/mypos/internal/checkout"
)

// Snapshot is an immutable view of the inventory at FetchedAt.
type Snapshot struct {
	FetchedAt time.Time

	items []checkout.Item
	byID  map[int64]int
}

func NewSnapshot(items []checkout.Item, at time.Time) *Snapshot {
	s := &Snapshot{
		FetchedAt: at,
		items:     append([]checkout.Item(nil), items...),
		byID:      make(map[int64]int, len(items)),
	}
	for i, it := range s.items {
		s.byID[it.ID] = i
	}
	return s
}

func (s *Snapshot) Item(id int64) (checkout.Item, bool) {
	if s == nil {
		return checkout.Item{}, false
	}
	i, ok := s.byID[id]
	if !ok {
		return checkout.Item{}, false
	}
	return s.items[i], true
}

func (s *Snapshot) Items() []checkout.Item {
	if s == nil {
		return nil
	}
	return append([]checkout.Item(nil), s.items...)
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Search returns items whose name contains term, ignoring case. An empty term
// matches everything.
func (s *Snapshot) Search(term string) []checkout.Item {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return s.Items()
	}
	var out []checkout.Item
	for _, it := range s.Items() {
		if strings.Contains(strings.ToLower(it.Name), term) {
			out = append(out, it)
		}
	}
	return out
}
