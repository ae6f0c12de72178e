package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tribune/internal/apierr"
	"tribune/internal/checkout"
	"tribune/internal/config"
	"tribune/internal/external"
	"tribune/internal/logger"
	"tribune/internal/metrics"
	"tribune/internal/session"

	"github.com/joho/godotenv"
)

var (
	eventID   = flag.Int64("event", 0, "Event to enter (0 = first listed event)")
	seatCount = flag.Int("seats", 2, "Number of available seats to hold")
	extend    = flag.Bool("extend", false, "Extend each hold once before checkout")
	browse    = flag.Bool("browse", false, "List events and exit")
	linger    = flag.Duration("linger", 5*time.Second, "How long to watch the seat view before checking out")
)

// The client drives one full reservation workflow: browse events, hold
// seats, watch the live seat view, then convert the holds into an order
// and follow it to a terminal outcome.
func main() {
	flag.Parse()
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithSessionID(logger.NewSessionID())

	if cfg.MetricsEnabled {
		go func() {
			log.Info("Starting metrics endpoint", "port", cfg.MetricsPort)
			if err := http.ListenAndServe(":"+cfg.MetricsPort, metrics.Handler()); err != nil {
				log.Error("Metrics endpoint failed", "error", err)
			}
		}()
	}

	catalog := external.NewCatalogClient(cfg.Catalog)
	reservations := external.NewReservationClient(cfg.Reservation)
	orders := external.NewOrderClient(cfg.Order)

	sess := session.New(catalog, reservations, orders, session.Config{
		PollInterval:         cfg.PollInterval,
		StreamRetryDelay:     cfg.StreamRetryDelay,
		CountdownInterval:    cfg.CountdownInterval,
		CheckoutPollInterval: cfg.CheckoutPollInterval,
		HoldSeconds:          cfg.HoldSeconds,
		ExtendSeconds:        cfg.ExtendSeconds,
	})
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("Interrupted, tearing session down")
		cancel()
	}()

	events, err := sess.ListEvents()
	if err != nil {
		logger.Fatal("Failed to list events", "error", err)
	}
	if len(events) == 0 {
		logger.Fatal("No events in catalog")
	}

	for _, ev := range events {
		log.Info("Event", "id", ev.ID, "title", ev.Title, "when", ev.When())
	}
	if *browse {
		return
	}

	target := *eventID
	if target == 0 {
		target = events[0].ID
	}

	if err := sess.EnterEvent(ctx, target); err != nil {
		logger.Fatal("Failed to enter event", "event_id", target, "error", err)
	}

	// claim seats front rows first
	seatMap, _ := sess.Cache().Get(target)
	byPos := seatMap.SeatByPosition()
	held := 0
	for r := 1; r <= seatMap.Rows && held < *seatCount; r++ {
		for c := 1; c <= seatMap.Cols && held < *seatCount; c++ {
			seat, ok := byPos[[2]int{r, c}]
			if !ok {
				continue
			}
			if err := sess.HoldSeat(seat.ID); err != nil {
				if errors.Is(err, session.ErrSeatUnavailable) {
					continue
				}
				log.Warn("Hold failed", "seat_id", seat.ID, "reason", apierr.UserMessage(err), "error", err)
				continue
			}
			held++
		}
	}

	if held == 0 {
		logger.Fatal("Could not hold any seats", "event_id", target)
	}
	log.Info("Holds placed", "count", held, "total_price", sess.Ledger().Total())

	if *extend {
		for _, h := range sess.Ledger().Items() {
			if err := sess.ExtendHold(h.SeatID); err != nil {
				log.Warn("Extend failed", "seat_id", h.SeatID, "reason", apierr.UserMessage(err))
			}
		}
	}

	// watch the countdown and the live view for a while, the way a user
	// lingers on the seat picker
	deadline := time.After(*linger)
	ticker := time.NewTicker(1 * time.Second)
watch:
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			break watch
		case <-ticker.C:
			for seatID, left := range sess.Scheduler().Remaining() {
				log.Info("Hold countdown", "seat_id", seatID, "seconds_left", left)
			}
		}
	}
	ticker.Stop()

	state, order, err := sess.Checkout(ctx)
	if err != nil {
		log.Error("Checkout failed", "state", state, "reason", apierr.UserMessage(err), "error", err)
		// a request-level failure sends the user back to the event list
		// instead of leaving them on a dead checkout screen
		os.Exit(1)
	}

	switch state {
	case checkout.StateConfirmed:
		log.Info("Checkout confirmed", "order_id", order.OrderID, "seat_ids", order.SeatIDs)
	case checkout.StateCancelled:
		log.Warn("Checkout cancelled, seats released", "order_id", order.OrderID)
	default:
		log.Warn("Checkout ended without confirmation", "state", state)
	}
}
