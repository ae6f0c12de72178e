package cache

import (
	"sync"

	"tribune/internal/models"
)

// SeatViewCache is the client-local view of seat availability, one SeatMap
// per event. It is the single source of truth consumers render from and is
// fed by two channels: wholesale replacement from the periodic poll and
// per-seat status patches from the delta stream. The poll always wins over
// any delta applied before it, so a missed, duplicated or reordered delta
// self-heals within one poll interval.
type SeatViewCache struct {
	mu   sync.Mutex
	maps map[int64]*models.SeatMap
}

func New() *SeatViewCache {
	return &SeatViewCache{
		maps: make(map[int64]*models.SeatMap),
	}
}

// Replace installs a freshly polled seat map for the event, wholesale
func (c *SeatViewCache) Replace(eventID int64, seatMap *models.SeatMap) {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *seatMap
	copied.Seats = make([]models.Seat, len(seatMap.Seats))
	copy(copied.Seats, seatMap.Seats)
	c.maps[eventID] = &copied
}

// PatchStatus applies one delta to the cached map. Applying the same status
// twice is a no-op, and patches to different seats are independent, so delta
// ordering only has to be eventual. Deltas arriving before the first poll
// are dropped, not buffered; the next poll supplies the full state. Returns
// whether the patch landed on a cached seat.
func (c *SeatViewCache) PatchStatus(eventID, seatID int64, status models.SeatStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	seatMap, ok := c.maps[eventID]
	if !ok {
		return false
	}

	for i := range seatMap.Seats {
		if seatMap.Seats[i].ID == seatID {
			seatMap.Seats[i].Status = status
			return true
		}
	}
	return false
}

// Get returns a copy of the cached seat map for the event, if any.
// Callers never see or mutate the cache's own storage.
func (c *SeatViewCache) Get(eventID int64) (models.SeatMap, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seatMap, ok := c.maps[eventID]
	if !ok {
		return models.SeatMap{}, false
	}

	copied := *seatMap
	copied.Seats = make([]models.Seat, len(seatMap.Seats))
	copy(copied.Seats, seatMap.Seats)
	return copied, true
}

// Seat looks up a single seat by id in the cached map for the event
func (c *SeatViewCache) Seat(eventID, seatID int64) (models.Seat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seatMap, ok := c.maps[eventID]
	if !ok {
		return models.Seat{}, false
	}

	for _, s := range seatMap.Seats {
		if s.ID == seatID {
			return s, true
		}
	}
	return models.Seat{}, false
}

// Drop removes the cached map for the event
func (c *SeatViewCache) Drop(eventID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.maps, eventID)
}
