package stub

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribune/internal/models"
)

func setupRouter(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := NewServer(Options{Rows: 2, Cols: 3})
	return s, s.Router()
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	jsonBody, err := json.Marshal(body)
	require.NoError(t, err)

	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createHoldReq(eventID, seatID int64) models.CreateReservationRequest {
	return models.CreateReservationRequest{EventID: eventID, SeatID: seatID, HoldSeconds: 30}
}

func TestListEvents(t *testing.T) {
	_, r := setupRouter(t)

	req, _ := http.NewRequest("GET", "/api/events", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var events []models.EventSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Len(t, events, 3)
}

func TestGetSeatMap(t *testing.T) {
	_, r := setupRouter(t)

	req, _ := http.NewRequest("GET", "/api/events/1/seats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var seatMap models.SeatMap
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &seatMap))
	assert.Equal(t, 2, seatMap.Rows)
	assert.Equal(t, 3, seatMap.Cols)
	assert.Len(t, seatMap.Seats, 6)
}

func TestGetSeatMapUnknownEvent(t *testing.T) {
	_, r := setupRouter(t)

	req, _ := http.NewRequest("GET", "/api/events/99/seats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateHold(t *testing.T) {
	s, r := setupRouter(t)

	w := postJSON(t, r, "/api/reservations", createHoldReq(1, 1), nil)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp models.CreateReservationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.SeatID)
	assert.True(t, resp.ExpiresAt.After(time.Now()))
	assert.NotEmpty(t, resp.TraceID)

	seat, ok := s.Seat(1, 1)
	require.True(t, ok)
	assert.Equal(t, models.SeatHeld, seat.Status)
}

func TestCreateHoldConflict(t *testing.T) {
	_, r := setupRouter(t)

	first := postJSON(t, r, "/api/reservations", createHoldReq(1, 1), nil)
	require.Equal(t, http.StatusCreated, first.Code)

	second := postJSON(t, r, "/api/reservations", createHoldReq(1, 1), nil)

	assert.Equal(t, http.StatusConflict, second.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &body))
	assert.Equal(t, "RESERVATION_CONFLICT", body["code"])
}

func TestCreateHoldOnSoldSeat(t *testing.T) {
	s, r := setupRouter(t)

	first := postJSON(t, r, "/api/reservations", createHoldReq(1, 1), nil)
	require.Equal(t, http.StatusCreated, first.Code)

	req, _ := http.NewRequest("POST", "/api/reservations/1/1/confirm", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	seat, _ := s.Seat(1, 1)
	require.Equal(t, models.SeatSold, seat.Status)

	second := postJSON(t, r, "/api/reservations", createHoldReq(1, 1), nil)

	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
}

func TestExtendMissingHoldIsGone(t *testing.T) {
	_, r := setupRouter(t)

	w := postJSON(t, r, "/api/reservations/1/1/extend", models.ExtendReservationRequest{Seconds: 30}, nil)

	assert.Equal(t, http.StatusGone, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RESERVATION_EXPIRED", body["code"])
}

func TestReleaseHold(t *testing.T) {
	s, r := setupRouter(t)

	first := postJSON(t, r, "/api/reservations", createHoldReq(1, 1), nil)
	require.Equal(t, http.StatusCreated, first.Code)

	req, _ := http.NewRequest("DELETE", "/api/reservations/1/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)

	seat, _ := s.Seat(1, 1)
	assert.Equal(t, models.SeatAvailable, seat.Status)
}

func TestHoldExpiresServerSide(t *testing.T) {
	clock := time.Now()
	gin.SetMode(gin.TestMode)
	s := NewServer(Options{Rows: 2, Cols: 3, Now: func() time.Time { return clock }})
	r := s.Router()

	first := postJSON(t, r, "/api/reservations", createHoldReq(1, 1), nil)
	require.Equal(t, http.StatusCreated, first.Code)

	// past the TTL the seat is reclaimable by anyone
	clock = clock.Add(31 * time.Second)

	second := postJSON(t, r, "/api/reservations", createHoldReq(1, 1), nil)
	assert.Equal(t, http.StatusCreated, second.Code)
}

func TestCreateOrderRequiresIdempotencyKey(t *testing.T) {
	_, r := setupRouter(t)

	w := postJSON(t, r, "/api/orders", models.CreateOrderRequest{EventID: 1, SeatIDs: []int64{1}}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrderDeduplicatesByKey(t *testing.T) {
	_, r := setupRouter(t)

	body := models.CreateOrderRequest{EventID: 1, SeatIDs: []int64{1, 2}}
	headers := map[string]string{"Idempotency-Key": "key-1"}

	first := postJSON(t, r, "/api/orders", body, headers)
	require.Equal(t, http.StatusOK, first.Code)
	second := postJSON(t, r, "/api/orders", body, headers)
	require.Equal(t, http.StatusOK, second.Code)

	var a, b models.Order
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.Equal(t, a.OrderID, b.OrderID)
	assert.Equal(t, models.OrderCreated, a.Status)
}

func TestResolveOrderSellsSeats(t *testing.T) {
	s, r := setupRouter(t)

	hold := postJSON(t, r, "/api/reservations", createHoldReq(1, 1), nil)
	require.Equal(t, http.StatusCreated, hold.Code)

	created := postJSON(t, r, "/api/orders", models.CreateOrderRequest{EventID: 1, SeatIDs: []int64{1}},
		map[string]string{"Idempotency-Key": "key-1"})
	require.Equal(t, http.StatusOK, created.Code)

	var order models.Order
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &order))

	s.ResolveOrder(order.OrderID, models.OrderConfirmed)

	req, _ := http.NewRequest("GET", "/api/orders/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var latest models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &latest))
	assert.Equal(t, models.OrderConfirmed, latest.Status)

	seat, _ := s.Seat(1, 1)
	assert.Equal(t, models.SeatSold, seat.Status)
}

func TestStreamReplayAfterCursor(t *testing.T) {
	s, _ := setupRouter(t)

	s.PushSeatUpdate(1, 1, models.SeatHeld)
	s.PushSeatUpdate(1, 2, models.SeatHeld)
	s.PushSeatUpdate(1, 3, models.SeatSold)

	h := s.hubs[1]
	_, replay, cancel := h.subscribe("1")
	defer cancel()

	require.Len(t, replay, 2)
	var delta models.SeatDelta
	require.NoError(t, json.Unmarshal([]byte(replay[0].Data), &delta))
	assert.Equal(t, int64(2), delta.SeatID)
}
