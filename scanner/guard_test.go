package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/table-orders/models"
)

type fakeLookup struct {
	mu     sync.Mutex
	calls  int
	tables map[int]*models.Table
	block  chan struct{}
}

func (f *fakeLookup) LookupTable(_ context.Context, _ string, number int) (*models.Table, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if t, ok := f.tables[number]; ok {
		return t, nil
	}
	return nil, errors.New("table not found")
}

func (f *fakeLookup) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func scanData(t *testing.T, number int) string {
	s, err := NewPayload("resto-1", "Warung", number).Encode()
	require.NoError(t, err)
	return s
}

func newTestGuard(lookup TableLookup) (*Guard, *int) {
	handoffs := 0
	g := NewGuard(lookup, func(context.Context, *models.Table, Payload) { handoffs++ }, DefaultConfig())
	return g, &handoffs
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestGuard_DuplicateScansWithinDebounce(t *testing.T) {
	lookup := &fakeLookup{tables: map[int]*models.Table{4: {ID: 1, TableNumber: 4, IsActive: true}}}
	g, handoffs := newTestGuard(lookup)

	first := g.HandleScan(context.Background(), scanData(t, 4), t0)
	second := g.HandleScan(context.Background(), scanData(t, 4), t0.Add(200*time.Millisecond))

	assert.Equal(t, Accepted, first.Outcome)
	assert.Equal(t, Ignored, second.Outcome)
	assert.Equal(t, 1, lookup.Calls())
	assert.Equal(t, 1, *handoffs)
}

func TestGuard_NavigatingSuppressesUntilReset(t *testing.T) {
	lookup := &fakeLookup{tables: map[int]*models.Table{
		4: {ID: 1, TableNumber: 4, IsActive: true},
		5: {ID: 2, TableNumber: 5, IsActive: true},
	}}
	g, _ := newTestGuard(lookup)

	require.Equal(t, Accepted, g.HandleScan(context.Background(), scanData(t, 4), t0).Outcome)
	assert.Equal(t, Ignored, g.HandleScan(context.Background(), scanData(t, 4), t0.Add(time.Minute)).Outcome)
	assert.Equal(t, Ignored, g.HandleScan(context.Background(), scanData(t, 5), t0.Add(time.Minute)).Outcome)
	g.Tick(t0.Add(time.Hour))
	assert.Equal(t, PhaseSuccess, g.Phase())
	assert.Equal(t, 1, lookup.Calls())

	g.Reset()
	assert.Equal(t, PhaseIdle, g.Phase())
	assert.Equal(t, Accepted, g.HandleScan(context.Background(), scanData(t, 4), t0.Add(time.Hour)).Outcome)
	assert.Equal(t, 2, lookup.Calls())
}

func TestGuard_MalformedNeverLooksUp(t *testing.T) {
	lookup := &fakeLookup{}
	g, _ := newTestGuard(lookup)

	res := g.HandleScan(context.Background(), `{"restaurantId":"r","tableNumber":2,"type":"menu_item"}`, t0)
	assert.Equal(t, Malformed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrMalformedPayload)
	assert.Equal(t, PhaseError, g.Phase())
	assert.Zero(t, lookup.Calls())
}

func TestGuard_ErrorCooldownAndAutoReset(t *testing.T) {
	lookup := &fakeLookup{tables: map[int]*models.Table{
		4: {ID: 1, TableNumber: 4, IsActive: false},
		5: {ID: 2, TableNumber: 5, IsActive: true},
	}}
	g, handoffs := newTestGuard(lookup)

	res := g.HandleScan(context.Background(), scanData(t, 4), t0)
	assert.Equal(t, TableUnavailable, res.Outcome)
	assert.Equal(t, PhaseError, g.Phase())

	// cooldown still active
	assert.Equal(t, Ignored, g.HandleScan(context.Background(), scanData(t, 5), t0.Add(1200*time.Millisecond)).Outcome)
	// cooldown over, but the failed payload is still remembered
	assert.Equal(t, Ignored, g.HandleScan(context.Background(), scanData(t, 4), t0.Add(2*time.Second)).Outcome)

	g.Tick(t0.Add(3 * time.Second))
	assert.Equal(t, PhaseIdle, g.Phase())
	assert.Equal(t, 1, lookup.Calls())

	assert.Equal(t, Accepted, g.HandleScan(context.Background(), scanData(t, 5), t0.Add(3*time.Second)).Outcome)
	assert.Equal(t, 1, *handoffs)
}

func TestGuard_LookupFailure(t *testing.T) {
	g, handoffs := newTestGuard(&fakeLookup{})

	res := g.HandleScan(context.Background(), scanData(t, 9), t0)
	assert.Equal(t, LookupFailed, res.Outcome)
	assert.Error(t, res.Err)
	assert.Zero(t, *handoffs)
}

func TestGuard_InFlightSuppressesConcurrentScans(t *testing.T) {
	lookup := &fakeLookup{
		tables: map[int]*models.Table{4: {ID: 1, TableNumber: 4, IsActive: true}},
		block:  make(chan struct{}),
	}
	g, _ := newTestGuard(lookup)

	data := scanData(t, 4)
	done := make(chan Result)
	go func() { done <- g.HandleScan(context.Background(), data, t0) }()

	require.Eventually(t, func() bool { return g.Phase() == PhaseValidating }, time.Second, time.Millisecond)
	assert.Equal(t, Ignored, g.HandleScan(context.Background(), scanData(t, 5), t0.Add(5*time.Second)).Outcome)

	close(lookup.block)
	assert.Equal(t, Accepted, (<-done).Outcome)
	assert.Equal(t, 1, lookup.Calls())
}

func TestSessions_OneGuardPerDevice(t *testing.T) {
	lookup := &fakeLookup{}
	s := NewSessions(time.Minute, func() *Guard { return NewGuard(lookup, nil, DefaultConfig()) })

	a := s.Get("device-a", t0)
	assert.Same(t, a, s.Get("device-a", t0.Add(time.Second)))
	assert.NotSame(t, a, s.Get("device-b", t0))
	assert.Equal(t, 2, s.Len())

	assert.True(t, s.Reset("device-a"))
	assert.False(t, s.Reset("unknown"))

	assert.Equal(t, 1, s.Evict(t0.Add(time.Minute+500*time.Millisecond)))
	assert.Equal(t, 1, s.Len())
}
