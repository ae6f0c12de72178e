package integration

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tribune/internal/external"
	"tribune/internal/models"
	"tribune/internal/session"
	"tribune/internal/stub"
)

// env is one self-contained workflow environment: a stub backend behind a
// real HTTP listener plus a client session wired against it with fast
// intervals so the tests converge quickly.
type env struct {
	Backend *stub.Server
	Session *session.Session
	Orders  *external.OrderClient
	baseURL string
	srv     *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := stub.NewServer(stub.Options{Rows: 4, Cols: 5})
	srv := httptest.NewServer(backend.Router())

	catalog := external.NewCatalogClient(external.CatalogConfig{BaseURL: srv.URL})
	reservations := external.NewReservationClient(external.ReservationConfig{BaseURL: srv.URL})
	orders := external.NewOrderClient(external.OrderConfig{BaseURL: srv.URL})

	sess := session.New(catalog, reservations, orders, session.Config{
		PollInterval:         50 * time.Millisecond,
		StreamRetryDelay:     20 * time.Millisecond,
		CountdownInterval:    20 * time.Millisecond,
		CheckoutPollInterval: 20 * time.Millisecond,
		HoldSeconds:          30,
		ExtendSeconds:        30,
	})

	e := &env{Backend: backend, Session: sess, Orders: orders, baseURL: srv.URL, srv: srv}
	t.Cleanup(func() {
		sess.Close()
		srv.Close()
	})
	return e
}

// newSession attaches a second independent client session to the same backend
func (e *env) newSession(t *testing.T) *session.Session {
	t.Helper()

	catalog := external.NewCatalogClient(external.CatalogConfig{BaseURL: e.baseURL})
	reservations := external.NewReservationClient(external.ReservationConfig{BaseURL: e.baseURL})
	orders := external.NewOrderClient(external.OrderConfig{BaseURL: e.baseURL})

	sess := session.New(catalog, reservations, orders, session.Config{
		PollInterval:         50 * time.Millisecond,
		StreamRetryDelay:     20 * time.Millisecond,
		CountdownInterval:    20 * time.Millisecond,
		CheckoutPollInterval: 20 * time.Millisecond,
	})
	t.Cleanup(sess.Close)
	return sess
}

// waitForSeatStatus blocks until the session's cached view of the seat
// reaches the wanted status or the deadline passes
func waitForSeatStatus(t *testing.T, s *session.Session, eventID, seatID int64, want models.SeatStatus) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if seat, ok := s.Cache().Seat(eventID, seatID); ok && seat.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	seat, ok := s.Cache().Seat(eventID, seatID)
	t.Fatalf("seat %d never reached %s (cached: %+v, found=%v)", seatID, want, seat, ok)
}

// waitForLedgerLen blocks until the ledger holds exactly n seats
func waitForLedgerLen(t *testing.T, s *session.Session, n int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.Ledger().Len() == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ledger never reached %d holds, has %d", n, s.Ledger().Len())
}
