package stub

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tribune/internal/apierr"
	"tribune/internal/models"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

// Router builds the gin engine serving all three service boundaries.
// In production they are separate deployments; the stub serves them from
// one origin the way the original mock handlers did.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		events := api.Group("/events")
		{
			events.GET("", s.listEvents)
			events.GET("/:id", s.getEvent)
			events.GET("/:id/seats", s.getSeatMap)
			events.GET("/:id/seats/stream", s.streamSeats)
		}

		reservations := api.Group("/reservations")
		{
			reservations.POST("", s.createHold)
			reservations.POST("/:eventId/:seatId/extend", s.extendHold)
			reservations.DELETE("/:eventId/:seatId", s.releaseHold)
			reservations.POST("/:eventId/:seatId/confirm", s.confirmHold)
		}

		orders := api.Group("/orders")
		{
			orders.POST("", s.createOrder)
			orders.GET("/:id", s.getOrder)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "tribune-stub"})
	})

	return router
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

// listEvents - GET /api/events
func (s *Server) listEvents(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.events)
}

// getEvent - GET /api/events/:id
func (s *Server) getEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.ID == id {
			c.JSON(http.StatusOK, ev)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
}

// getSeatMap - GET /api/events/:id/seats
func (s *Server) getSeatMap(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	grid := s.grids[id]
	if grid == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}

	s.expireHolds(id)

	seatMap := models.SeatMap{Rows: grid.rows, Cols: grid.cols}
	for _, st := range grid.seats {
		seatMap.Seats = append(seatMap.Seats, st.seat)
	}
	c.JSON(http.StatusOK, seatMap)
}

// streamSeats - GET /api/events/:id/seats/stream
// Sends an INIT greeting, replays missed records when the client resumes
// with Last-Event-ID, then relays live updates until the client goes away.
func (s *Server) streamSeats(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	s.mu.Lock()
	h := s.hubs[id]
	s.mu.Unlock()
	if h == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ch, replay, cancel := h.subscribe(c.GetHeader("Last-Event-ID"))
	defer cancel()

	write := func(id, event, data string) bool {
		if err := sse.Encode(c.Writer, sse.Event{Id: id, Event: event, Data: data}); err != nil {
			return false
		}
		c.Writer.Flush()
		return true
	}

	if !write(fmt.Sprintf("init-%d", time.Now().UnixMilli()), "INIT", fmt.Sprintf("connected to event %d", id)) {
		return
	}
	for _, f := range replay {
		if !write(strconv.FormatInt(f.ID, 10), f.Event, f.Data) {
			return
		}
	}

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case f := <-ch:
			if !write(strconv.FormatInt(f.ID, 10), f.Event, f.Data) {
				return
			}
		}
	}
}

// createHold - POST /api/reservations
func (s *Server) createHold(c *gin.Context) {
	var req models.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireHolds(req.EventID)

	st, err := s.findSeat(req.EventID, req.SeatID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	switch st.seat.Status {
	case models.SeatSold:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":    apierr.CodeValidationFailed,
			"message": "seat is already sold",
		})
		return
	case models.SeatHeld:
		c.JSON(http.StatusConflict, gin.H{
			"code":    apierr.CodeConflict,
			"message": "seat is held by another session",
		})
		return
	}

	expiresAt := s.now().Add(time.Duration(req.HoldSeconds) * time.Second)
	st.holdExpiry = expiresAt
	s.setSeatStatus(req.EventID, st, models.SeatHeld)

	c.JSON(http.StatusCreated, models.CreateReservationResponse{
		EventID:     req.EventID,
		SeatID:      req.SeatID,
		HoldSeconds: req.HoldSeconds,
		ExpiresAt:   expiresAt,
		TraceID:     s.traceID(),
	})
}

// extendHold - POST /api/reservations/:eventId/:seatId/extend
func (s *Server) extendHold(c *gin.Context) {
	eventID, ok := pathID(c, "eventId")
	if !ok {
		return
	}
	seatID, ok := pathID(c, "seatId")
	if !ok {
		return
	}

	var req models.ExtendReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireHolds(eventID)

	st, err := s.findSeat(eventID, seatID)
	if err != nil || st.seat.Status != models.SeatHeld {
		c.JSON(http.StatusGone, gin.H{
			"code":    apierr.CodeExpired,
			"message": "hold is expired or gone",
		})
		return
	}

	st.holdExpiry = s.now().Add(time.Duration(req.Seconds) * time.Second)
	c.JSON(http.StatusOK, models.ExtendReservationResponse{ExpiresAt: st.holdExpiry})
}

// releaseHold - DELETE /api/reservations/:eventId/:seatId
func (s *Server) releaseHold(c *gin.Context) {
	eventID, ok := pathID(c, "eventId")
	if !ok {
		return
	}
	seatID, ok := pathID(c, "seatId")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.findSeat(eventID, seatID)
	if err != nil || st.seat.Status != models.SeatHeld {
		c.JSON(http.StatusGone, gin.H{
			"code":    apierr.CodeExpired,
			"message": "hold is expired or gone",
		})
		return
	}

	s.setSeatStatus(eventID, st, models.SeatAvailable)
	c.Status(http.StatusNoContent)
}

// confirmHold - POST /api/reservations/:eventId/:seatId/confirm
func (s *Server) confirmHold(c *gin.Context) {
	eventID, ok := pathID(c, "eventId")
	if !ok {
		return
	}
	seatID, ok := pathID(c, "seatId")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireHolds(eventID)

	st, err := s.findSeat(eventID, seatID)
	if err != nil || st.seat.Status != models.SeatHeld {
		c.JSON(http.StatusGone, gin.H{
			"code":    apierr.CodeExpired,
			"message": "hold is expired or gone",
		})
		return
	}

	s.setSeatStatus(eventID, st, models.SeatSold)
	c.JSON(http.StatusOK, models.ConfirmReservationResponse{
		EventID:     eventID,
		SeatID:      seatID,
		ConfirmedAt: s.now(),
		TraceID:     s.traceID(),
	})
}

// createOrder - POST /api/orders
// Identical key and body collapse to the already-created order.
func (s *Server) createOrder(c *gin.Context) {
	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key header is required"})
		return
	}

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if orderID, ok := s.ordersByKey[key]; ok {
		c.JSON(http.StatusOK, s.orders[orderID])
		return
	}

	s.nextOrderID++
	order := &models.Order{
		OrderID:   s.nextOrderID,
		Status:    models.OrderCreated,
		EventID:   req.EventID,
		SeatIDs:   req.SeatIDs,
		CreatedAt: s.now().Format(time.RFC3339),
	}
	s.orders[order.OrderID] = order
	s.ordersByKey[key] = order.OrderID

	c.JSON(http.StatusOK, order)
}

// getOrder - GET /api/orders/:id
func (s *Server) getOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, found := s.orders[id]
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, order)
}
