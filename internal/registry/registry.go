package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmcale/go-incident-dispatch/internal/models"
)

// Registry is the sole authority over unit status. Each unit carries its own
// lock so unrelated units can be mutated in parallel; the registry-level lock
// only guards the map itself.
type Registry struct {
	mu    sync.RWMutex
	units map[string]*unitEntry
}

type unitEntry struct {
	mu      sync.Mutex
	unit    models.Unit
	claimed bool
}

// Candidate is a unit eligible for an incident, with the travel distance
// computed at query time.
type Candidate struct {
	Unit       models.Unit
	DistanceKm float64
}

func New() *Registry {
	return &Registry{
		units: make(map[string]*unitEntry),
	}
}

func (r *Registry) Register(u models.Unit) error {
	if u.ID == "" {
		return fmt.Errorf("unit id is required")
	}
	if u.Status == "" {
		u.Status = models.UnitAvailable
	}
	if u.RegisteredAt.IsZero() {
		u.RegisteredAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.units[u.ID]; ok {
		return fmt.Errorf("%w: unit %s", models.ErrDuplicateID, u.ID)
	}
	r.units[u.ID] = &unitEntry{unit: u}
	return nil
}

func (r *Registry) entry(id string) (*unitEntry, error) {
	r.mu.RLock()
	e, ok := r.units[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unit %s", models.ErrNotFound, id)
	}
	return e, nil
}

func (r *Registry) Get(id string) (models.Unit, error) {
	e, err := r.entry(id)
	if err != nil {
		return models.Unit{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unit, nil
}

// SetStatus applies a fleet-reported status change, validated against the
// unit transition table. A claimed unit cannot be freed this way: the claim
// is released only through Release, so a stale GPS feed can never hand a
// bound unit back to the allocator.
func (r *Registry) SetStatus(id string, status models.UnitStatus) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.claimed && (status == models.UnitAvailable || status == models.UnitOutOfService) {
		return fmt.Errorf("%w: unit %s is claimed, release it through its assignment", models.ErrInvalidTransition, id)
	}
	return e.unit.Transition(status)
}

func (r *Registry) UpdateLocation(id string, loc models.Coordinates) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unit.Location = loc
	return nil
}

func (r *Registry) UpdateShiftHours(id string, hours float64) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unit.HoursOnShift = hours
	return nil
}

// Claim atomically takes an AVAILABLE unit EN_ROUTE. Exactly one of any
// number of concurrent claimers wins; the rest get ErrConcurrentClaim.
func (r *Registry) Claim(id string) (models.Unit, error) {
	e, err := r.entry(id)
	if err != nil {
		return models.Unit{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.claimed || e.unit.Status != models.UnitAvailable {
		return models.Unit{}, fmt.Errorf("%w: unit %s is %s", models.ErrConcurrentClaim, id, e.unit.Status)
	}
	e.unit.Status = models.UnitEnRoute
	e.claimed = true
	return e.unit, nil
}

// Release returns a claimed unit to AVAILABLE after its assignment closes
// (or after a failed commit rolls the claim back).
func (r *Registry) Release(id string) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.claimed {
		return fmt.Errorf("%w: unit %s is %s, not claimed", models.ErrInvalidTransition, id, e.unit.Status)
	}
	e.unit.Status = models.UnitAvailable
	e.claimed = false
	return nil
}

// QueryAvailable returns a snapshot of AVAILABLE units of the given type
// within maxDistanceKm of loc, ordered by increasing distance (ties broken
// by unit ID). The snapshot is finite and restartable; claims race on the
// live entries, not on this view.
func (r *Registry) QueryAvailable(loc models.Coordinates, unitType models.UnitType, maxDistanceKm float64) []Candidate {
	r.mu.RLock()
	entries := make([]*unitEntry, 0, len(r.units))
	for _, e := range r.units {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	candidates := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		u := e.unit
		e.mu.Unlock()

		if u.Status != models.UnitAvailable || u.Type != unitType {
			continue
		}
		d := u.Location.DistanceKm(loc)
		if maxDistanceKm > 0 && d > maxDistanceKm {
			continue
		}
		candidates = append(candidates, Candidate{Unit: u, DistanceKm: d})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DistanceKm != candidates[j].DistanceKm {
			return candidates[i].DistanceKm < candidates[j].DistanceKm
		}
		return candidates[i].Unit.ID < candidates[j].Unit.ID
	})
	return candidates
}

// ListUnits returns a snapshot of every registered unit, ordered by ID.
func (r *Registry) ListUnits() []models.Unit {
	r.mu.RLock()
	entries := make([]*unitEntry, 0, len(r.units))
	for _, e := range r.units {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	units := make([]models.Unit, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		units = append(units, e.unit)
		e.mu.Unlock()
	}
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	return units
}
