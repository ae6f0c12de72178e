package stub

import (
	"fmt"
	"sync"
	"time"

	"tribune/internal/models"

	"github.com/google/uuid"
)

// Server is an in-memory stand-in for the catalog, reservation and order
// services, faithful to their wire contract: one active hold per seat,
// hold expiry, idempotent order creation and a replayable seat stream.
// It backs cmd/stubserver for local development and the workflow tests.
type Server struct {
	mu sync.Mutex

	events []models.EventSummary
	grids  map[int64]*eventGrid
	hubs   map[int64]*hub

	orders      map[int64]*models.Order
	ordersByKey map[string]int64
	nextOrderID int64

	now func() time.Time
}

type eventGrid struct {
	rows, cols int
	seats      map[int64]*seatState
}

type seatState struct {
	seat    models.Seat
	version int
	// holdExpiry is set while the seat is HELD; zero otherwise
	holdExpiry time.Time
}

type Options struct {
	Rows int
	Cols int
	// Now overrides the clock, for tests
	Now func() time.Time
}

func NewServer(opts Options) *Server {
	if opts.Rows == 0 {
		opts.Rows = 10
	}
	if opts.Cols == 0 {
		opts.Cols = 12
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	desc := func(s string) *string { return &s }
	s := &Server{
		events: []models.EventSummary{
			{ID: 1, Title: "Ultra Concert 2025", Description: desc("Mega concert"), DateTime: "2025-09-10T19:00:00Z"},
			{ID: 2, Title: "Indie Fest", Description: desc("Indie music festival"), DateTime: "2025-09-15T18:00:00Z"},
			{ID: 3, Title: "Classic Night", Description: desc("Orchestra"), DateTime: "2025-09-20T20:00:00Z"},
		},
		grids:       make(map[int64]*eventGrid),
		hubs:        make(map[int64]*hub),
		orders:      make(map[int64]*models.Order),
		ordersByKey: make(map[string]int64),
		now:         opts.Now,
	}

	var seatID int64
	for _, ev := range s.events {
		grid := &eventGrid{rows: opts.Rows, cols: opts.Cols, seats: make(map[int64]*seatState)}
		for r := 1; r <= opts.Rows; r++ {
			for c := 1; c <= opts.Cols; c++ {
				seatID++
				grid.seats[seatID] = &seatState{
					seat: models.Seat{
						ID:     seatID,
						Row:    r,
						Col:    c,
						Price:  basePrice(r),
						Status: models.SeatAvailable,
					},
				}
			}
		}
		s.grids[ev.ID] = grid
		s.hubs[ev.ID] = newHub()
	}

	return s
}

// front rows cost more
func basePrice(row int) int64 {
	price := int64(50000) - int64(row-1)*2000
	if price < 10000 {
		price = 10000
	}
	return price
}

// expireHolds reverts seats whose hold lapsed server-side. Called before
// every state access so expiry is observed lazily but consistently.
func (s *Server) expireHolds(eventID int64) {
	now := s.now()
	grid := s.grids[eventID]
	if grid == nil {
		return
	}
	for _, st := range grid.seats {
		if st.seat.Status == models.SeatHeld && !st.holdExpiry.After(now) {
			st.seat.Status = models.SeatAvailable
			st.holdExpiry = time.Time{}
			st.version++
			s.hubs[eventID].publish("SEAT_UPDATE", models.SeatDelta{
				SeatID:  st.seat.ID,
				Status:  models.SeatAvailable,
				Version: st.version,
			})
		}
	}
}

func (s *Server) setSeatStatus(eventID int64, st *seatState, status models.SeatStatus) {
	st.seat.Status = status
	if status != models.SeatHeld {
		st.holdExpiry = time.Time{}
	}
	st.version++
	s.hubs[eventID].publish("SEAT_UPDATE", models.SeatDelta{
		SeatID:  st.seat.ID,
		Status:  status,
		Version: st.version,
	})
}

func (s *Server) findSeat(eventID, seatID int64) (*seatState, error) {
	grid := s.grids[eventID]
	if grid == nil {
		return nil, fmt.Errorf("unknown event %d", eventID)
	}
	st := grid.seats[seatID]
	if st == nil {
		return nil, fmt.Errorf("unknown seat %d", seatID)
	}
	return st, nil
}

// PushSeatUpdate broadcasts a raw delta without touching seat state.
// Test hook for exercising the client's delta path in isolation.
func (s *Server) PushSeatUpdate(eventID, seatID int64, status models.SeatStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, err := s.findSeat(eventID, seatID); err == nil {
		st.seat.Status = status
		st.version++
		s.hubs[eventID].publish("SEAT_UPDATE", models.SeatDelta{SeatID: seatID, Status: status, Version: st.version})
	}
}

// ExpireHoldNow forces server-side expiry of a hold, as if the TTL lapsed
func (s *Server) ExpireHoldNow(eventID, seatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.findSeat(eventID, seatID)
	if err != nil || st.seat.Status != models.SeatHeld {
		return
	}
	s.setSeatStatus(eventID, st, models.SeatAvailable)
}

// ResolveOrder moves an order to its terminal status, selling or releasing
// the seats accordingly. Stands in for the payment saga.
func (s *Server) ResolveOrder(orderID int64, status models.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.Status.Terminal() {
		return
	}
	order.Status = status

	for _, seatID := range order.SeatIDs {
		st, err := s.findSeat(order.EventID, seatID)
		if err != nil {
			continue
		}
		switch status {
		case models.OrderConfirmed:
			s.setSeatStatus(order.EventID, st, models.SeatSold)
		default:
			s.setSeatStatus(order.EventID, st, models.SeatAvailable)
		}
	}
}

// Seat returns the server's current view of a seat, for test assertions
func (s *Server) Seat(eventID, seatID int64) (models.Seat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.findSeat(eventID, seatID)
	if err != nil {
		return models.Seat{}, false
	}
	return st.seat, true
}

func (s *Server) traceID() string {
	return uuid.New().String()
}
