package models

import (
	"time"
)

// SeatStatus is the availability state of a single seat
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatHeld      SeatStatus = "HELD"
	SeatSold      SeatStatus = "SOLD"
)

// Seat represents one seat in an event's grid.
// Row/Col is a secondary positional key, unique within the grid; identity is ID.
type Seat struct {
	ID     int64      `json:"id"`
	Row    int        `json:"r"`
	Col    int        `json:"c"`
	Price  int64      `json:"price"`
	Status SeatStatus `json:"status"`
}

// SeatMap is the full seat grid for one event as returned by the catalog service.
// Absent (row,col) pairs are rendered as placeholders by consumers.
type SeatMap struct {
	Rows  int    `json:"rows"`
	Cols  int    `json:"cols"`
	Seats []Seat `json:"seats"`
}

// SeatByPosition indexes the seats by their (row,col) position
func (m *SeatMap) SeatByPosition() map[[2]int]Seat {
	idx := make(map[[2]int]Seat, len(m.Seats))
	for _, s := range m.Seats {
		idx[[2]int{s.Row, s.Col}] = s
	}
	return idx
}

// SeatDelta is one incremental seat-status update pushed over the stream.
// Version is informational; ordering is healed by the periodic poll instead.
type SeatDelta struct {
	SeatID  int64      `json:"seatId"`
	Status  SeatStatus `json:"status"`
	Version int        `json:"version"`
}

// Hold is this session's belief about a server-granted hold on one seat.
// The server is authoritative; ExpiresAt always comes from a server response.
type Hold struct {
	SeatID    int64
	EventID   int64
	Price     int64
	ExpiresAt time.Time
}

// Remaining returns whole seconds left before the hold expires, never negative
func (h Hold) Remaining(now time.Time) int {
	left := h.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// EventSummary describes one event from the catalog listing.
// Backends differ on the timestamp field name, so both are accepted.
type EventSummary struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Date        string  `json:"date,omitempty"`
	DateTime    string  `json:"dateTime,omitempty"`
}

// When returns the event timestamp regardless of which field the backend sent
func (e EventSummary) When() string {
	if e.DateTime != "" {
		return e.DateTime
	}
	return e.Date
}

// CreateReservationRequest - request body for creating a hold
type CreateReservationRequest struct {
	EventID     int64 `json:"eventId" binding:"required"`
	SeatID      int64 `json:"seatId" binding:"required"`
	HoldSeconds int   `json:"holdSeconds" binding:"required"`
}

// CreateReservationResponse - response for a successful hold creation
type CreateReservationResponse struct {
	EventID     int64     `json:"eventId"`
	SeatID      int64     `json:"seatId"`
	HoldSeconds int       `json:"holdSeconds"`
	ExpiresAt   time.Time `json:"expiresAt"`
	TraceID     string    `json:"traceId"`
}

// ExtendReservationRequest - request body for extending a hold
type ExtendReservationRequest struct {
	Seconds int `json:"seconds" binding:"required"`
}

// ExtendReservationResponse carries the new absolute expiry from the server
type ExtendReservationResponse struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

// ConfirmReservationResponse - response for a confirmed hold
type ConfirmReservationResponse struct {
	EventID     int64     `json:"eventId"`
	SeatID      int64     `json:"seatId"`
	ConfirmedAt time.Time `json:"confirmedAt"`
	TraceID     string    `json:"traceId"`
}

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderCreated   OrderStatus = "CREATED"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderFailed    OrderStatus = "FAILED"
)

// Terminal reports whether no further status transition can occur
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderConfirmed, OrderCancelled, OrderFailed:
		return true
	}
	return false
}

// CreateOrderRequest - request body for creating an order from held seats
type CreateOrderRequest struct {
	EventID int64   `json:"eventId" binding:"required"`
	SeatIDs []int64 `json:"seatIds" binding:"required"`
}

// Order - order state as reported by the order service
type Order struct {
	OrderID   int64       `json:"orderId"`
	Status    OrderStatus `json:"status"`
	EventID   int64       `json:"eventId"`
	SeatIDs   []int64     `json:"seatIds"`
	CreatedAt string      `json:"createdAt,omitempty"`
}
