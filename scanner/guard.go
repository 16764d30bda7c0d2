package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/table-orders/models"
	"github.com/yeremiapane/table-orders/utils"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseSuccess    Phase = "success"
	PhaseError      Phase = "error"
)

type Outcome string

const (
	// Ignored scans leave the guard untouched.
	Ignored          Outcome = "ignored"
	Malformed        Outcome = "malformed"
	LookupFailed     Outcome = "lookup_failed"
	TableUnavailable Outcome = "table_unavailable"
	Accepted         Outcome = "accepted"
)

type Result struct {
	Outcome Outcome
	Phase   Phase
	Payload *Payload
	Table   *models.Table
	Err     error
}

// TableLookup resolves the table named by a payload.
type TableLookup interface {
	LookupTable(ctx context.Context, restaurantID string, tableNumber int) (*models.Table, error)
}

// Handoff is called once per accepted scan, outside the guard's lock.
type Handoff func(ctx context.Context, table *models.Table, payload Payload)

type Config struct {
	Debounce      time.Duration
	ErrorCooldown time.Duration
	AutoReset     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Debounce:      time.Second,
		ErrorCooldown: 1500 * time.Millisecond,
		AutoReset:     3 * time.Second,
	}
}

// Guard is a single-flight, debounced QR scan session:
// idle -> validating -> success|error -> idle.
// Time is always supplied by the caller, so timers are processed by Tick
// (and lazily on each scan).
type Guard struct {
	mu      sync.Mutex
	lookup  TableLookup
	handoff Handoff
	cfg     Config

	phase         Phase
	lastPayload   string
	lastScan      time.Time
	inFlight      bool
	navigating    bool
	cooldownUntil time.Time
	resetAt       time.Time
}

func NewGuard(lookup TableLookup, handoff Handoff, cfg Config) *Guard {
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.ErrorCooldown <= 0 {
		cfg.ErrorCooldown = def.ErrorCooldown
	}
	if cfg.AutoReset <= 0 {
		cfg.AutoReset = def.AutoReset
	}
	return &Guard{lookup: lookup, handoff: handoff, cfg: cfg, phase: PhaseIdle}
}

func (g *Guard) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Tick applies timer expiry at now: the error cooldown and the auto-reset
// back to idle. A pending navigation is never auto-reset.
func (g *Guard) Tick(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tick(now)
}

func (g *Guard) tick(now time.Time) {
	if !g.cooldownUntil.IsZero() && !now.Before(g.cooldownUntil) {
		g.cooldownUntil = time.Time{}
	}
	if g.phase == PhaseError && !g.resetAt.IsZero() && !now.Before(g.resetAt) {
		g.phase = PhaseIdle
		g.lastPayload = ""
		g.resetAt = time.Time{}
	}
}

// Reset is the manual "scan again": every flag and timer is cleared.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.phase = PhaseIdle
	g.lastPayload = ""
	g.lastScan = time.Time{}
	g.navigating = false
	g.cooldownUntil = time.Time{}
	g.resetAt = time.Time{}
}

// HandleScan processes one raw scan event received at now.
func (g *Guard) HandleScan(ctx context.Context, data string, now time.Time) Result {
	g.mu.Lock()
	g.tick(now)
	if g.suppressed(data, now) {
		phase := g.phase
		g.mu.Unlock()
		return Result{Outcome: Ignored, Phase: phase}
	}
	g.lastScan = now
	g.lastPayload = data

	payload, err := ParsePayload(data)
	if err != nil {
		g.fail(now)
		g.mu.Unlock()
		utils.InfoLogger.Debugf("scan rejected: %v", err)
		return Result{Outcome: Malformed, Phase: PhaseError, Err: err}
	}
	g.inFlight = true
	g.phase = PhaseValidating
	g.mu.Unlock()

	table, err := g.lookup.LookupTable(ctx, payload.RestaurantID, payload.TableNumber)

	g.mu.Lock()
	g.inFlight = false
	log := utils.InfoLogger.WithFields(logrus.Fields{
		"restaurant_id": payload.RestaurantID,
		"table_number":  payload.TableNumber,
	})
	if err != nil {
		g.fail(now)
		g.mu.Unlock()
		log.Infof("scan lookup failed: %v", err)
		return Result{Outcome: LookupFailed, Phase: PhaseError, Payload: &payload, Err: err}
	}
	if !table.IsActive {
		g.fail(now)
		g.mu.Unlock()
		log.Info("scanned table is occupied")
		return Result{Outcome: TableUnavailable, Phase: PhaseError, Payload: &payload, Table: table}
	}
	g.phase = PhaseSuccess
	g.navigating = true
	g.mu.Unlock()

	log.WithField("table_id", table.ID).Info("scan accepted")
	if g.handoff != nil {
		g.handoff(ctx, table, payload)
	}
	return Result{Outcome: Accepted, Phase: PhaseSuccess, Payload: &payload, Table: table}
}

func (g *Guard) suppressed(data string, now time.Time) bool {
	switch {
	case g.inFlight, g.navigating:
		return true
	case now.Before(g.cooldownUntil):
		return true
	case !g.lastScan.IsZero() && now.Sub(g.lastScan) < g.cfg.Debounce:
		return true
	case g.lastPayload != "" && data == g.lastPayload:
		return true
	}
	return false
}

// fail enters the error phase: flags cleared, cooldown and auto-reset armed.
func (g *Guard) fail(now time.Time) {
	g.phase = PhaseError
	g.inFlight = false
	g.navigating = false
	g.cooldownUntil = now.Add(g.cfg.ErrorCooldown)
	g.resetAt = now.Add(g.cfg.AutoReset)
}
