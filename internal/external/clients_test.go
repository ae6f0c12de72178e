package external

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribune/internal/apierr"
	"tribune/internal/models"
)

func TestListEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events", r.URL.Path)
		json.NewEncoder(w).Encode([]models.EventSummary{
			{ID: 1, Title: "Ultra Concert 2025", DateTime: "2025-09-10T19:00:00Z"},
			{ID: 2, Title: "Indie Fest", Date: "2025-09-15"},
		})
	}))
	defer srv.Close()

	cc := NewCatalogClient(CatalogConfig{BaseURL: srv.URL})
	events, err := cc.ListEvents()

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "2025-09-10T19:00:00Z", events[0].When())
	assert.Equal(t, "2025-09-15", events[1].When())
}

func TestGetEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events/2", r.URL.Path)
		json.NewEncoder(w).Encode(models.EventSummary{ID: 2, Title: "Indie Fest"})
	}))
	defer srv.Close()

	cc := NewCatalogClient(CatalogConfig{BaseURL: srv.URL})
	event, err := cc.GetEvent(2)

	require.NoError(t, err)
	assert.Equal(t, "Indie Fest", event.Title)
}

func TestGetSeatMapDecodesGrid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events/1/seats", r.URL.Path)
		w.Write([]byte(`{"rows":1,"cols":2,"seats":[
			{"id":1,"r":1,"c":1,"price":50000,"status":"AVAILABLE"},
			{"id":2,"r":1,"c":2,"price":50000,"status":"SOLD"}]}`))
	}))
	defer srv.Close()

	cc := NewCatalogClient(CatalogConfig{BaseURL: srv.URL})
	seatMap, err := cc.GetSeatMap(1)

	require.NoError(t, err)
	assert.Equal(t, 1, seatMap.Rows)
	require.Len(t, seatMap.Seats, 2)
	assert.Equal(t, 1, seatMap.Seats[1].Row)
	assert.Equal(t, 2, seatMap.Seats[1].Col)
	assert.Equal(t, models.SeatSold, seatMap.Seats[1].Status)
}

func TestStreamURL(t *testing.T) {
	cc := NewCatalogClient(CatalogConfig{BaseURL: "http://localhost:8081"})
	assert.Equal(t, "http://localhost:8081/api/events/7/seats/stream", cc.StreamURL(7))
}

func TestCreateHoldParsesServerExpiry(t *testing.T) {
	expiresAt := time.Now().Add(30 * time.Second).UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateReservationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(42), req.SeatID)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.CreateReservationResponse{
			EventID:     req.EventID,
			SeatID:      req.SeatID,
			HoldSeconds: req.HoldSeconds,
			ExpiresAt:   expiresAt,
			TraceID:     "trace-1",
		})
	}))
	defer srv.Close()

	rc := NewReservationClient(ReservationConfig{BaseURL: srv.URL})
	resp, err := rc.CreateHold(&models.CreateReservationRequest{EventID: 1, SeatID: 42, HoldSeconds: 30})

	require.NoError(t, err)
	assert.True(t, resp.ExpiresAt.Equal(expiresAt))
	assert.Equal(t, "trace-1", resp.TraceID)
}

func TestCreateHoldConflictMapsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"RESERVATION_CONFLICT","message":"seat taken"}`))
	}))
	defer srv.Close()

	rc := NewReservationClient(ReservationConfig{BaseURL: srv.URL})
	_, err := rc.CreateHold(&models.CreateReservationRequest{EventID: 1, SeatID: 42, HoldSeconds: 30})

	assert.ErrorIs(t, err, apierr.ErrConflict)
}

func TestExtendHoldGoneMapsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
		w.Write([]byte(`{"code":"RESERVATION_EXPIRED","message":"hold is gone"}`))
	}))
	defer srv.Close()

	rc := NewReservationClient(ReservationConfig{BaseURL: srv.URL})
	_, err := rc.ExtendHold(1, 42, 30)

	assert.ErrorIs(t, err, apierr.ErrExpired)
}

func TestReleaseHoldExpectsNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/reservations/1/42", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rc := NewReservationClient(ReservationConfig{BaseURL: srv.URL})
	assert.NoError(t, rc.ReleaseHold(1, 42))
}

func TestConfirmHold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/reservations/1/42/confirm", r.URL.Path)
		json.NewEncoder(w).Encode(models.ConfirmReservationResponse{
			EventID: 1, SeatID: 42, ConfirmedAt: time.Now(), TraceID: "trace-2",
		})
	}))
	defer srv.Close()

	rc := NewReservationClient(ReservationConfig{BaseURL: srv.URL})
	resp, err := rc.ConfirmHold(1, 42)

	require.NoError(t, err)
	assert.Equal(t, int64(42), resp.SeatID)
	assert.Equal(t, "trace-2", resp.TraceID)
}

func TestNetworkFailureMapsSentinel(t *testing.T) {
	cc := NewCatalogClient(CatalogConfig{BaseURL: "http://127.0.0.1:1", Timeout: 100 * time.Millisecond})

	_, err := cc.ListEvents()

	assert.ErrorIs(t, err, apierr.ErrNetwork)
}

func TestCreateOrderSendsIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "attempt-1", r.Header.Get("Idempotency-Key"))
		json.NewEncoder(w).Encode(models.Order{OrderID: 1, Status: models.OrderCreated})
	}))
	defer srv.Close()

	oc := NewOrderClient(OrderConfig{BaseURL: srv.URL})
	order, err := oc.CreateOrder(&models.CreateOrderRequest{EventID: 1, SeatIDs: []int64{42}}, "attempt-1")

	require.NoError(t, err)
	assert.Equal(t, models.OrderCreated, order.Status)
}
