package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmcale/go-incident-dispatch/internal/broadcast"
	"github.com/jmcale/go-incident-dispatch/internal/costmodel"
	"github.com/jmcale/go-incident-dispatch/internal/ledger"
	"github.com/jmcale/go-incident-dispatch/internal/models"
	"github.com/jmcale/go-incident-dispatch/internal/queue"
	"github.com/jmcale/go-incident-dispatch/internal/registry"
)

// LedgerSink receives ledger entries without blocking the caller.
type LedgerSink interface {
	Submit(e *ledger.Entry)
}

type Config struct {
	// TickInterval paces the background dispatch loop.
	TickInterval time.Duration
	// RetryBudget bounds candidate-search retries after a concurrent claim
	// conflict before the incident is deferred to the next cycle.
	RetryBudget int
	// MaxResponseDistanceKm caps how far a unit may be sent. Zero means
	// unlimited.
	MaxResponseDistanceKm float64
}

func DefaultConfig() Config {
	return Config{
		TickInterval:          2 * time.Second,
		RetryBudget:           3,
		MaxResponseDistanceKm: 50,
	}
}

// Engine decides which unit responds to which incident. It owns assignment
// lifecycle; the registry stays the authority over unit status and the
// queue over incident status.
type Engine struct {
	registry *registry.Registry
	queue    *queue.Queue
	costs    *costmodel.Model
	sink     LedgerSink
	events   *broadcast.Broadcaster
	cfg      Config

	// mu guards the active-assignment maps. It is ordered before the queue
	// lock: commit and cancel paths take mu first, then call into the queue.
	mu         sync.Mutex
	byIncident map[string]*activeAssignment
	byUnit     map[string]string

	nudge chan struct{}
}

type activeAssignment struct {
	assignment  models.Assignment
	severity    models.Severity
	openEntryID string
}

func New(reg *registry.Registry, q *queue.Queue, costs *costmodel.Model, sink LedgerSink, events *broadcast.Broadcaster, cfg Config) *Engine {
	return &Engine{
		registry:   reg,
		queue:      q,
		costs:      costs,
		sink:       sink,
		events:     events,
		cfg:        cfg,
		byIncident: make(map[string]*activeAssignment),
		byUnit:     make(map[string]string),
		nudge:      make(chan struct{}, 1),
	}
}

// Run drives dispatch cycles until ctx is cancelled: one per tick, plus one
// whenever Nudge signals that new work or a freed unit arrived.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("allocation engine stopping")
			return
		case <-ticker.C:
		case <-e.nudge:
		}
		e.RunCycle(ctx)
	}
}

// Nudge requests an immediate dispatch cycle. Safe from any goroutine,
// never blocks; coalesces with a pending request.
func (e *Engine) Nudge() {
	select {
	case e.nudge <- struct{}{}:
	default:
	}
}

// RunCycle walks OPEN incidents in priority order and tries to bind each to
// its minimum-cost eligible unit. Incidents with no eligible unit stay OPEN
// and never block the ones behind them. Returns the number of assignments
// committed.
func (e *Engine) RunCycle(ctx context.Context) int {
	assigned := 0
	for _, inc := range e.queue.OpenIncidents() {
		if ctx.Err() != nil {
			return assigned
		}
		a, err := e.dispatchIncident(inc)
		if err != nil {
			slog.Error("dispatch failed", "incident_id", inc.ID, "error", err)
			continue
		}
		if a != nil {
			assigned++
		}
	}
	return assigned
}

// dispatchIncident runs steps 2-5 of the dispatch cycle for one incident.
// A nil assignment with nil error means the incident was deferred (no
// eligible unit, retry budget exhausted, or concurrently handled).
func (e *Engine) dispatchIncident(inc models.Incident) (*models.Assignment, error) {
	excluded := make(map[string]bool)

	for attempt := 0; attempt <= e.cfg.RetryBudget; attempt++ {
		// Cancellation may preempt an in-flight dispatch; check at each
		// retry boundary.
		current, err := e.queue.Get(inc.ID)
		if err != nil || current.Status != models.IncidentOpen {
			return nil, nil
		}
		inc = current

		best, ok := e.selectCandidate(inc, excluded)
		if !ok {
			// Deferred, not an error: the incident stays OPEN.
			return nil, nil
		}

		claimed, err := e.registry.Claim(best.Unit.ID)
		switch {
		case errors.Is(err, models.ErrConcurrentClaim), errors.Is(err, models.ErrNotFound):
			// Unit no longer eligible; retry the search without it.
			excluded[best.Unit.ID] = true
			continue
		case err != nil:
			return nil, fmt.Errorf("claiming unit %s: %w", best.Unit.ID, err)
		}

		a, err := e.commit(inc, claimed, best)
		if err != nil {
			// The incident was cancelled or taken while we held the unit;
			// roll the claim back, both sides stay untouched.
			if rerr := e.registry.Release(claimed.ID); rerr != nil {
				slog.Error("claim rollback failed", "unit_id", claimed.ID, "error", rerr)
			}
			if errors.Is(err, models.ErrAlreadyHandled) {
				return nil, nil
			}
			return nil, err
		}
		return a, nil
	}

	slog.Warn("retry budget exhausted, incident deferred",
		"incident_id", inc.ID, "severity", inc.Severity.String())
	return nil, nil
}

// selectCandidate scores eligible units and returns the cheapest, breaking
// ties by distance and then unit ID so identical snapshots always produce
// the same choice.
func (e *Engine) selectCandidate(inc models.Incident, excluded map[string]bool) (scored, bool) {
	candidates := e.registry.QueryAvailable(inc.Location, inc.UnitType, e.cfg.MaxResponseDistanceKm)

	var best scored
	found := false
	for _, c := range candidates {
		if excluded[c.Unit.ID] {
			continue
		}
		s := scored{Candidate: c, Cost: e.costs.EstimateCost(c.Unit, inc)}
		if !found || s.better(best) {
			best = s
			found = true
		}
	}
	return best, found
}

type scored struct {
	registry.Candidate
	Cost float64
}

func (s scored) better(other scored) bool {
	if s.Cost != other.Cost {
		return s.Cost < other.Cost
	}
	if s.DistanceKm != other.DistanceKm {
		return s.DistanceKm < other.DistanceKm
	}
	return s.Unit.ID < other.Unit.ID
}

// commit performs the atomic transition: the unit is already claimed; take
// the incident OPEN -> ASSIGNED and register the assignment, or fail and
// let the caller roll the claim back.
func (e *Engine) commit(inc models.Incident, u models.Unit, s scored) (*models.Assignment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.queue.DequeueForAssignment(inc.ID); err != nil {
		return nil, err
	}

	a := models.Assignment{
		ID:         uuid.NewString(),
		IncidentID: inc.ID,
		UnitID:     u.ID,
		Cost:       s.Cost,
		DistanceKm: s.DistanceKm,
		CreatedAt:  time.Now(),
	}
	entryID := uuid.NewString()
	e.byIncident[inc.ID] = &activeAssignment{
		assignment:  a,
		severity:    inc.Severity,
		openEntryID: entryID,
	}
	e.byUnit[u.ID] = inc.ID

	e.record(&ledger.Entry{
		ID:           entryID,
		AssignmentID: a.ID,
		IncidentID:   inc.ID,
		UnitID:       u.ID,
		Event:        ledger.EventAssigned,
		Severity:     inc.Severity,
		Cost:         a.Cost,
		DistanceKm:   a.DistanceKm,
		RecordedAt:   a.CreatedAt,
	})
	e.publish(broadcast.EventAssigned, a, inc.Severity)

	slog.Info("assignment committed",
		"incident_id", inc.ID,
		"unit_id", u.ID,
		"severity", inc.Severity.String(),
		"cost", a.Cost,
		"distance_km", a.DistanceKm,
	)
	return &a, nil
}

// Resolve closes an assigned incident: the incident becomes RESOLVED, the
// unit returns to AVAILABLE, and exactly one assignment closes.
func (e *Engine) Resolve(incidentID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	active, ok := e.byIncident[incidentID]
	if !ok {
		return fmt.Errorf("%w: incident %s", models.ErrNoActiveAssignment, incidentID)
	}
	if err := e.queue.Resolve(incidentID); err != nil {
		return err
	}
	e.closeAssignment(active, models.ResolutionResolved, ledger.EventResolved, broadcast.EventResolved)
	delete(e.byIncident, incidentID)
	delete(e.byUnit, active.assignment.UnitID)

	e.Nudge() // a unit came free
	return nil
}

// Cancel cancels an incident in any pre-terminal state. For an assigned
// incident the unit is released and the assignment closes with a CANCELLED
// resolution; the incident itself never returns to the queue.
func (e *Engine) Cancel(incidentID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, err := e.queue.Cancel(incidentID)
	if err != nil {
		return err
	}
	if prev != models.IncidentAssigned {
		slog.Info("open incident cancelled", "incident_id", incidentID)
		return nil
	}

	active, ok := e.byIncident[incidentID]
	if !ok {
		// Queue said ASSIGNED but we hold no assignment; should be
		// impossible since both change under mu.
		return fmt.Errorf("%w: incident %s", models.ErrNoActiveAssignment, incidentID)
	}
	e.closeAssignment(active, models.ResolutionCancelled, ledger.EventCancelled, broadcast.EventCancelled)
	delete(e.byIncident, incidentID)
	delete(e.byUnit, active.assignment.UnitID)

	e.Nudge()
	return nil
}

func (e *Engine) closeAssignment(active *activeAssignment, res models.AssignmentResolution, event ledger.EventType, bev broadcast.EventType) {
	now := time.Now()
	active.assignment.Resolution = res
	active.assignment.ClosedAt = &now

	if err := e.registry.Release(active.assignment.UnitID); err != nil {
		slog.Error("unit release failed", "unit_id", active.assignment.UnitID, "error", err)
	}

	e.record(&ledger.Entry{
		ID:           uuid.NewString(),
		AssignmentID: active.assignment.ID,
		IncidentID:   active.assignment.IncidentID,
		UnitID:       active.assignment.UnitID,
		Event:        event,
		Severity:     active.severity,
		Cost:         active.assignment.Cost,
		DistanceKm:   active.assignment.DistanceKm,
		RefEntryID:   active.openEntryID,
		RecordedAt:   now,
	})
	e.publish(bev, active.assignment, active.severity)

	slog.Info("assignment closed",
		"incident_id", active.assignment.IncidentID,
		"unit_id", active.assignment.UnitID,
		"resolution", string(res),
	)
}

// ActiveAssignments returns a snapshot of open assignments.
func (e *Engine) ActiveAssignments() []models.Assignment {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Assignment, 0, len(e.byIncident))
	for _, active := range e.byIncident {
		out = append(out, active.assignment)
	}
	return out
}

// AssignmentForUnit reports the incident a unit is currently bound to.
func (e *Engine) AssignmentForUnit(unitID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	incidentID, ok := e.byUnit[unitID]
	return incidentID, ok
}

func (e *Engine) record(entry *ledger.Entry) {
	if e.sink != nil {
		e.sink.Submit(entry)
	}
}

func (e *Engine) publish(t broadcast.EventType, a models.Assignment, sev models.Severity) {
	if e.events != nil {
		e.events.Publish(broadcast.Event{Type: t, Assignment: a, Severity: sev})
	}
}
