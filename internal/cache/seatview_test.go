package cache

import (
	"testing"

	"tribune/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoMap() *models.SeatMap {
	return &models.SeatMap{
		Rows: 2,
		Cols: 2,
		Seats: []models.Seat{
			{ID: 41, Row: 1, Col: 1, Price: 50000, Status: models.SeatAvailable},
			{ID: 42, Row: 1, Col: 2, Price: 50000, Status: models.SeatAvailable},
			{ID: 43, Row: 2, Col: 1, Price: 48000, Status: models.SeatSold},
		},
	}
}

func TestPatchStatusBeforeFirstPollIsDropped(t *testing.T) {
	c := New()

	applied := c.PatchStatus(1, 42, models.SeatHeld)
	assert.False(t, applied)

	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestPatchStatusIsIdempotent(t *testing.T) {
	c := New()
	c.Replace(1, demoMap())

	assert.True(t, c.PatchStatus(1, 42, models.SeatHeld))
	once, _ := c.Get(1)

	assert.True(t, c.PatchStatus(1, 42, models.SeatHeld))
	twice, _ := c.Get(1)

	assert.Equal(t, once, twice)

	seat, ok := c.Seat(1, 42)
	require.True(t, ok)
	assert.Equal(t, models.SeatHeld, seat.Status)
}

func TestPatchesToDifferentSeatsAreIndependent(t *testing.T) {
	c := New()
	c.Replace(1, demoMap())

	// apply in one order
	c.PatchStatus(1, 41, models.SeatHeld)
	c.PatchStatus(1, 42, models.SeatSold)
	forward, _ := c.Get(1)

	// and in the other
	c2 := New()
	c2.Replace(1, demoMap())
	c2.PatchStatus(1, 42, models.SeatSold)
	c2.PatchStatus(1, 41, models.SeatHeld)
	reverse, _ := c2.Get(1)

	assert.Equal(t, forward, reverse)
}

func TestPollReplacementWinsOverDeltaHistory(t *testing.T) {
	c := New()
	c.Replace(1, demoMap())

	// arbitrary, partially stale delta history
	c.PatchStatus(1, 41, models.SeatHeld)
	c.PatchStatus(1, 42, models.SeatSold)
	c.PatchStatus(1, 42, models.SeatHeld)
	c.PatchStatus(1, 43, models.SeatAvailable)

	truth := demoMap()
	truth.Seats[0].Status = models.SeatSold
	c.Replace(1, truth)

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, *truth, got)
}

func TestDeltaOverridesHeldWithSold(t *testing.T) {
	c := New()
	m := demoMap()
	m.Seats[1].Status = models.SeatHeld
	c.Replace(1, m)

	assert.True(t, c.PatchStatus(1, 42, models.SeatSold))

	seat, _ := c.Seat(1, 42)
	assert.Equal(t, models.SeatSold, seat.Status)
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	c := New()
	c.Replace(1, demoMap())

	got, _ := c.Get(1)
	got.Seats[0].Status = models.SeatSold

	seat, _ := c.Seat(1, 41)
	assert.Equal(t, models.SeatAvailable, seat.Status)
}

func TestReplaceCopiesCallerMap(t *testing.T) {
	c := New()
	m := demoMap()
	c.Replace(1, m)

	m.Seats[0].Status = models.SeatSold

	seat, _ := c.Seat(1, 41)
	assert.Equal(t, models.SeatAvailable, seat.Status)
}

func TestPatchStatusUnknownSeat(t *testing.T) {
	c := New()
	c.Replace(1, demoMap())

	assert.False(t, c.PatchStatus(1, 99, models.SeatHeld))
}

func TestDrop(t *testing.T) {
	c := New()
	c.Replace(1, demoMap())
	c.Drop(1)

	_, ok := c.Get(1)
	assert.False(t, ok)
}
