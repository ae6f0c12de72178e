package ledger

import (
	"sort"
	"sync"
	"time"

	"tribune/internal/models"
)

// HoldLedger tracks the seats this session believes it holds, keyed by seat
// id. Membership is advisory: the server can expire or revoke a hold out of
// band, and the cached seat map remains the ground truth for what actions
// are allowed. Holds are scoped to one event; switching events clears them.
type HoldLedger struct {
	mu      sync.Mutex
	eventID int64
	holds   map[int64]models.Hold
}

func New() *HoldLedger {
	return &HoldLedger{
		holds: make(map[int64]models.Hold),
	}
}

// SetEvent makes eventID the active event. A switch to a different event
// drops every hold: the server would reject a cross-event confirm anyway.
func (l *HoldLedger) SetEvent(eventID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.eventID == eventID {
		return
	}
	l.eventID = eventID
	l.holds = make(map[int64]models.Hold)
}

// EventID returns the active event, zero when none was set
func (l *HoldLedger) EventID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eventID
}

// Upsert inserts or replaces the hold for its seat.
// Used after both create and extend responses.
func (l *HoldLedger) Upsert(h models.Hold) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holds[h.SeatID] = h
}

// Get returns the hold for the seat, if this session has one
func (l *HoldLedger) Get(seatID int64) (models.Hold, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.holds[seatID]
	return h, ok
}

// Remove drops the hold for the seat; reports whether one was present
func (l *HoldLedger) Remove(seatID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.holds[seatID]; !ok {
		return false
	}
	delete(l.holds, seatID)
	return true
}

// EvictExpired removes every hold with expiresAt <= now and returns the
// removed holds so the caller can react, e.g. trigger a view refresh.
func (l *HoldLedger) EvictExpired(now time.Time) []models.Hold {
	l.mu.Lock()
	defer l.mu.Unlock()

	var removed []models.Hold
	for seatID, h := range l.holds {
		if !h.ExpiresAt.After(now) {
			removed = append(removed, h)
			delete(l.holds, seatID)
		}
	}
	return removed
}

// Items returns the current holds ordered by seat id
func (l *HoldLedger) Items() []models.Hold {
	l.mu.Lock()
	defer l.mu.Unlock()

	items := make([]models.Hold, 0, len(l.holds))
	for _, h := range l.holds {
		items = append(items, h)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SeatID < items[j].SeatID })
	return items
}

// SeatIDs returns the held seat ids ordered ascending
func (l *HoldLedger) SeatIDs() []int64 {
	items := l.Items()
	ids := make([]int64, len(items))
	for i, h := range items {
		ids[i] = h.SeatID
	}
	return ids
}

// Total sums the price over current holds. Recomputed on every read.
func (l *HoldLedger) Total() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total int64
	for _, h := range l.holds {
		total += h.Price
	}
	return total
}

// Len returns the number of current holds
func (l *HoldLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.holds)
}

// Clear drops every hold without touching the active event
func (l *HoldLedger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holds = make(map[int64]models.Hold)
}
