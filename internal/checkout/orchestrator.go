package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tribune/internal/external"
	"tribune/internal/ledger"
	"tribune/internal/metrics"
	"tribune/internal/models"

	"github.com/google/uuid"
)

const defaultPollInterval = 1 * time.Second

// State is the orchestrator's position in the checkout state machine
type State string

const (
	StateSubmitting State = "SUBMITTING"
	StateCreated    State = "CREATED"
	StateConfirmed  State = "CONFIRMED"
	StateCancelled  State = "CANCELLED"
	StateFailed     State = "FAILED"
)

// Terminal reports whether the state admits no further transition
func (s State) Terminal() bool {
	switch s {
	case StateConfirmed, StateCancelled, StateFailed:
		return true
	}
	return false
}

func stateFromOrder(status models.OrderStatus) State {
	switch status {
	case models.OrderConfirmed:
		return StateConfirmed
	case models.OrderCancelled:
		return StateCancelled
	case models.OrderFailed:
		return StateFailed
	default:
		return StateCreated
	}
}

// Orchestrator converts the current holds into one idempotent order-creation
// call and polls the order to a terminal outcome. The idempotency key is
// minted once per orchestrator, so a retried submission of the same attempt
// is deduplicated server-side instead of creating a second order. A fresh
// orchestrator means a fresh key, and legitimately may create a new order.
type Orchestrator struct {
	orders         *external.OrderClient
	ledger         *ledger.HoldLedger
	pollInterval   time.Duration
	idempotencyKey string

	mu    sync.Mutex
	state State
	order *models.Order
}

type Config struct {
	PollInterval time.Duration
}

func NewOrchestrator(orders *external.OrderClient, l *ledger.HoldLedger, cfg Config) *Orchestrator {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}

	return &Orchestrator{
		orders:         orders,
		ledger:         l,
		pollInterval:   cfg.PollInterval,
		idempotencyKey: uuid.New().String(),
		state:          StateSubmitting,
	}
}

// IdempotencyKey returns the key this checkout attempt submits with
func (o *Orchestrator) IdempotencyKey() string {
	return o.idempotencyKey
}

// State returns the current machine state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Order returns the order as last reported by the server, nil before creation
func (o *Orchestrator) Order() *models.Order {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.order
}

func (o *Orchestrator) setOrder(order *models.Order) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.order = order
	o.state = stateFromOrder(order.Status)
	return o.state
}

// Run drives one checkout attempt to a terminal state. The ledger is read
// exactly once at entry; from then on the orchestrator owns its own polling
// loop and is decoupled from hold mutations. On entry into any terminal
// state the ledger is cleared so stale cart contents cannot leak into a
// subsequent attempt. A request-level creation failure terminates as
// StateFailed with the error; the caller navigates the user away rather
// than leaving them polling.
func (o *Orchestrator) Run(ctx context.Context) (State, error) {
	eventID := o.ledger.EventID()
	seatIDs := o.ledger.SeatIDs()

	if len(seatIDs) == 0 {
		return o.finish(StateFailed), fmt.Errorf("no held seats to check out")
	}

	order, err := o.orders.CreateOrder(&models.CreateOrderRequest{
		EventID: eventID,
		SeatIDs: seatIDs,
	}, o.idempotencyKey)
	if err != nil {
		slog.Error("Order creation failed", "error", err, "event_id", eventID)
		return o.finish(StateFailed), fmt.Errorf("failed to create order: %w", err)
	}

	state := o.setOrder(order)
	slog.Info("Order created",
		"order_id", order.OrderID,
		"status", order.Status,
		"seat_count", len(seatIDs),
		"idempotency_key", o.idempotencyKey)

	if state.Terminal() {
		return o.finish(state), nil
	}

	return o.poll(ctx, order.OrderID)
}

// poll fetches order status on a fixed interval until a terminal status is
// observed, then stops permanently. Individual fetch failures are logged and
// the loop keeps going; only ctx cancellation aborts it early.
func (o *Orchestrator) poll(ctx context.Context, orderID int64) (State, error) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return o.State(), ctx.Err()
		case <-ticker.C:
			latest, err := o.orders.GetOrder(orderID)
			if err != nil {
				slog.Warn("Order status poll failed", "error", err, "order_id", orderID)
				continue
			}

			state := o.setOrder(latest)
			if state.Terminal() {
				slog.Info("Order reached terminal state", "order_id", orderID, "status", latest.Status)
				return o.finish(state), nil
			}
		}
	}
}

// finish records the terminal outcome and clears the ledger
func (o *Orchestrator) finish(state State) State {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()

	o.ledger.Clear()
	metrics.CheckoutOutcomes.WithLabelValues(string(state)).Inc()
	return state
}
