package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tribune/internal/cache"
	"tribune/internal/checkout"
	"tribune/internal/countdown"
	"tribune/internal/external"
	"tribune/internal/ledger"
	"tribune/internal/metrics"
	"tribune/internal/models"
	"tribune/internal/stream"
)

// ErrSeatUnavailable is returned when a hold is requested for a seat whose
// cached status is not AVAILABLE. The server would reject it anyway; the
// client refuses without the round trip.
var ErrSeatUnavailable = errors.New("seat is not available")

// ErrSeatBusy is returned while another mutation for the same seat is in flight
var ErrSeatBusy = errors.New("seat mutation already in flight")

// Session owns the client-local state for one browser-tab-equivalent
// workflow: the seat view cache, the hold ledger, the countdown scheduler
// and the per-event stream subscription. It is constructed explicitly and
// injected where needed; there are no ambient singletons. All state dies
// with the session.
type Session struct {
	catalog      *external.CatalogClient
	reservations *external.ReservationClient
	orders       *external.OrderClient

	cache     *cache.SeatViewCache
	ledger    *ledger.HoldLedger
	scheduler *countdown.Scheduler

	cfg Config

	mu          sync.Mutex
	activeEvent int64
	busy        map[int64]bool
	eventCancel context.CancelFunc

	refreshCh chan int64
}

type Config struct {
	PollInterval         time.Duration
	StreamRetryDelay     time.Duration
	CountdownInterval    time.Duration
	CheckoutPollInterval time.Duration
	HoldSeconds          int
	ExtendSeconds        int
}

func New(catalog *external.CatalogClient, reservations *external.ReservationClient, orders *external.OrderClient, cfg Config) *Session {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.HoldSeconds == 0 {
		cfg.HoldSeconds = 30
	}
	if cfg.ExtendSeconds == 0 {
		cfg.ExtendSeconds = 30
	}

	s := &Session{
		catalog:      catalog,
		reservations: reservations,
		orders:       orders,
		cache:        cache.New(),
		ledger:       ledger.New(),
		cfg:          cfg,
		busy:         make(map[int64]bool),
		refreshCh:    make(chan int64, 1),
	}

	s.scheduler = countdown.NewScheduler(s.ledger, countdown.Config{Interval: cfg.CountdownInterval})
	s.scheduler.OnExpire(func(h models.Hold) {
		slog.Info("Hold expired locally", "seat_id", h.SeatID, "event_id", h.EventID)
	})
	s.scheduler.OnEvicted(func(removed []models.Hold) {
		// reveal the seats as available again without waiting for the
		// next scheduled poll
		s.RequestRefresh()
	})

	return s
}

// Ledger exposes the hold ledger for checkout and for display
func (s *Session) Ledger() *ledger.HoldLedger {
	return s.ledger
}

// Cache exposes the seat view cache for display
func (s *Session) Cache() *cache.SeatViewCache {
	return s.cache
}

// Scheduler exposes the countdown scheduler for display
func (s *Session) Scheduler() *countdown.Scheduler {
	return s.scheduler
}

// ListEvents lists the catalog's events
func (s *Session) ListEvents() ([]models.EventSummary, error) {
	return s.catalog.ListEvents()
}

// ActiveEvent returns the currently entered event, zero when none
func (s *Session) ActiveEvent() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeEvent
}

// EnterEvent makes eventID the active event: seeds the seat view with an
// initial poll, then starts the repeating poll, the delta stream and the
// countdown clock. Entering a different event tears the previous one down
// first and clears the holds (they are event-scoped).
func (s *Session) EnterEvent(ctx context.Context, eventID int64) error {
	s.LeaveEvent()

	seatMap, err := s.catalog.GetSeatMap(eventID)
	if err != nil {
		return fmt.Errorf("failed to seed seat map: %w", err)
	}
	s.cache.Replace(eventID, seatMap)
	metrics.SeatMapPolls.Inc()

	eventCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.activeEvent = eventID
	s.eventCancel = cancel
	s.mu.Unlock()

	s.ledger.SetEvent(eventID)

	go s.pollLoop(eventCtx, eventID)

	streamClient := stream.New(s.catalog.StreamURL(eventID), stream.Config{RetryDelay: s.cfg.StreamRetryDelay})
	go streamClient.Run(eventCtx, func(msg stream.Message) {
		s.handleStreamMessage(eventID, msg)
	})

	s.scheduler.Start(eventCtx)

	slog.Info("Entered event", "event_id", eventID, "rows", seatMap.Rows, "cols", seatMap.Cols)
	return nil
}

// LeaveEvent stops the poll loop, the stream and the countdown for the
// active event. Holds left in the ledger expire on the server on their own.
func (s *Session) LeaveEvent() {
	s.mu.Lock()
	cancel := s.eventCancel
	s.eventCancel = nil
	s.activeEvent = 0
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// handleStreamMessage applies one stream record to the seat view
func (s *Session) handleStreamMessage(eventID int64, msg stream.Message) {
	if msg.Event != "SEAT_UPDATE" {
		// INIT greetings and unknown record types are informational
		slog.Debug("Stream record ignored", "event", msg.Event, "data", msg.Data)
		return
	}

	var delta models.SeatDelta
	if err := msg.Decode(&delta); err != nil {
		// degraded frame: keep it visible instead of dropping silently
		slog.Warn("Undecodable seat update", "data", msg.Data, "error", err)
		return
	}

	if s.cache.PatchStatus(eventID, delta.SeatID, delta.Status) {
		metrics.DeltasApplied.Inc()
	} else {
		metrics.DeltasDropped.Inc()
	}
}

// pollLoop re-fetches the full seat map on a fixed cadence and whenever an
// out-of-band refresh is requested. All replacements funnel through here.
func (s *Session) pollLoop(ctx context.Context, eventID int64) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(eventID)
		case <-s.refreshCh:
			s.poll(eventID)
		}
	}
}

func (s *Session) poll(eventID int64) {
	seatMap, err := s.catalog.GetSeatMap(eventID)
	if err != nil {
		// leave the cache in its last-known-good state
		slog.Warn("Seat map poll failed", "event_id", eventID, "error", err)
		return
	}

	// a response that completes after the event was left must not corrupt
	// a newer view
	if s.ActiveEvent() != eventID {
		return
	}

	s.cache.Replace(eventID, seatMap)
	metrics.SeatMapPolls.Inc()
}

// RequestRefresh schedules an out-of-band poll of the active event's seat
// map. Coalesces: if a refresh is already pending, this one folds into it.
func (s *Session) RequestRefresh() {
	eventID := s.ActiveEvent()
	if eventID == 0 {
		return
	}
	select {
	case s.refreshCh <- eventID:
	default:
	}
}

// beginSeatOp marks a seat mutation as in flight
func (s *Session) beginSeatOp(seatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[seatID] {
		return false
	}
	s.busy[seatID] = true
	return true
}

func (s *Session) endSeatOp(seatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, seatID)
}

// HoldSeat tentatively claims a seat for this session. The cached status is
// the ground truth for whether the action is offered at all; the server
// remains authoritative and its expiry timestamp is what lands in the
// ledger. Success and failure both trigger an out-of-band refresh so the
// view converges quickly.
func (s *Session) HoldSeat(seatID int64) error {
	eventID := s.ActiveEvent()
	if eventID == 0 {
		return fmt.Errorf("no active event")
	}

	seat, ok := s.cache.Seat(eventID, seatID)
	if !ok || seat.Status != models.SeatAvailable {
		return ErrSeatUnavailable
	}

	if !s.beginSeatOp(seatID) {
		return ErrSeatBusy
	}
	defer s.endSeatOp(seatID)

	resp, err := s.reservations.CreateHold(&models.CreateReservationRequest{
		EventID:     eventID,
		SeatID:      seatID,
		HoldSeconds: s.cfg.HoldSeconds,
	})
	if err != nil {
		s.RequestRefresh()
		return err
	}

	s.ledger.SetEvent(eventID)
	s.ledger.Upsert(models.Hold{
		SeatID:    seatID,
		EventID:   eventID,
		Price:     seat.Price,
		ExpiresAt: resp.ExpiresAt,
	})
	metrics.HoldsCreated.Inc()

	slog.Info("Seat held",
		"event_id", eventID,
		"seat_id", seatID,
		"expires_at", resp.ExpiresAt,
		"trace_id", resp.TraceID)

	s.RequestRefresh()
	return nil
}

// ExtendHold asks the server for more time on an existing hold. The new
// expiry is always the server-returned absolute timestamp, never computed
// locally: the server is the only authority on true remaining time.
func (s *Session) ExtendHold(seatID int64) error {
	eventID := s.ActiveEvent()
	hold, ok := s.ledger.Get(seatID)
	if !ok {
		return fmt.Errorf("no hold for seat %d", seatID)
	}

	if !s.beginSeatOp(seatID) {
		return ErrSeatBusy
	}
	defer s.endSeatOp(seatID)

	resp, err := s.reservations.ExtendHold(eventID, seatID, s.cfg.ExtendSeconds)
	if err != nil {
		s.RequestRefresh()
		return err
	}

	hold.ExpiresAt = resp.ExpiresAt
	s.ledger.Upsert(hold)

	s.RequestRefresh()
	return nil
}

// ReleaseHold gives the seat back explicitly
func (s *Session) ReleaseHold(seatID int64) error {
	eventID := s.ActiveEvent()
	if _, ok := s.ledger.Get(seatID); !ok {
		return fmt.Errorf("no hold for seat %d", seatID)
	}

	if !s.beginSeatOp(seatID) {
		return ErrSeatBusy
	}
	defer s.endSeatOp(seatID)

	if err := s.reservations.ReleaseHold(eventID, seatID); err != nil {
		s.RequestRefresh()
		return err
	}

	s.ledger.Remove(seatID)
	s.RequestRefresh()
	return nil
}

// Checkout runs one checkout attempt over the current holds. Each call is a
// fresh attempt with a fresh orchestrator and therefore a fresh idempotency
// key; retries within the attempt reuse the same key.
func (s *Session) Checkout(ctx context.Context) (checkout.State, *models.Order, error) {
	orch := checkout.NewOrchestrator(s.orders, s.ledger, checkout.Config{
		PollInterval: s.cfg.CheckoutPollInterval,
	})

	state, err := orch.Run(ctx)
	return state, orch.Order(), err
}

// Close tears the session down
func (s *Session) Close() {
	s.LeaveEvent()
}
