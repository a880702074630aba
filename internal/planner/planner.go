package planner

import (
	"math/rand"
	"sort"

	"github.com/jmcale/go-incident-dispatch/internal/costmodel"
	"github.com/jmcale/go-incident-dispatch/internal/models"
)

// Penalty weights for the plan objective. Uncovered incidents dominate;
// capability mismatches nudge the search toward sensible pairings.
const (
	UncoveredPenalty     = 1000.0
	UnderPowerWeight     = 300.0
	OverProvisionPenalty = 200.0
	overProvisionSlack   = 2.0
)

type Params struct {
	Trials      int
	RefineIters int
	Seed        int64
	// MaxDistanceKm caps eligibility, zero means unlimited.
	MaxDistanceKm float64
}

func DefaultParams() Params {
	return Params{
		Trials:      50,
		RefineIters: 200,
	}
}

// Plan is an advisory whole-board assignment. It never commits anything:
// binding decisions still flow through the allocation engine one incident
// at a time.
type Plan struct {
	Assignments map[string]string `json:"assignments"` // incident ID -> unit ID
	Unassigned  []string          `json:"unassigned"`
	TotalCost   float64           `json:"total_cost"`
	Objective   float64           `json:"objective"`
}

// Solve searches for a minimum-objective assignment of available units to
// open incidents: random feasible starts refined by bounded local search,
// best plan across trials kept. Deterministic for a fixed seed and an
// identical snapshot.
func Solve(units []models.Unit, incidents []models.Incident, costs *costmodel.Model, p Params) Plan {
	s := newSolver(units, incidents, costs, p)
	if len(s.incidents) == 0 {
		return s.plan(nil)
	}
	if p.Trials < 1 {
		p.Trials = 1
	}

	rng := rand.New(rand.NewSource(p.Seed))

	var best []int
	bestScore := 0.0
	for trial := 0; trial < p.Trials; trial++ {
		candidate := s.generateInitial(rng)
		candidate = s.refine(rng, candidate, p.RefineIters)
		score := s.evaluate(candidate)
		if best == nil || score < bestScore {
			best = candidate
			bestScore = score
		}
	}
	return s.plan(best)
}

type solver struct {
	units     []models.Unit
	incidents []models.Incident
	costs     *costmodel.Model
	// eligible[i] lists indices into units that can serve incident i.
	eligible [][]int
}

func newSolver(units []models.Unit, incidents []models.Incident, costs *costmodel.Model, p Params) *solver {
	available := make([]models.Unit, 0, len(units))
	for _, u := range units {
		if u.Status == models.UnitAvailable {
			available = append(available, u)
		}
	}
	sort.Slice(available, func(i, j int) bool { return available[i].ID < available[j].ID })

	open := make([]models.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if inc.Status == models.IncidentOpen {
			open = append(open, inc)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].PriorityBefore(&open[j]) })

	s := &solver{units: available, incidents: open, costs: costs}
	s.eligible = make([][]int, len(open))
	for i, inc := range open {
		for j, u := range available {
			if u.Type != inc.UnitType {
				continue
			}
			if p.MaxDistanceKm > 0 && u.Location.DistanceKm(inc.Location) > p.MaxDistanceKm {
				continue
			}
			s.eligible[i] = append(s.eligible[i], j)
		}
	}
	return s
}

// generateInitial assigns each incident a random eligible unused unit, in
// priority order, leaving it uncovered when none remain.
func (s *solver) generateInitial(rng *rand.Rand) []int {
	assignment := make([]int, len(s.incidents))
	used := make([]bool, len(s.units))

	for i := range s.incidents {
		assignment[i] = -1
		free := make([]int, 0, len(s.eligible[i]))
		for _, j := range s.eligible[i] {
			if !used[j] {
				free = append(free, j)
			}
		}
		if len(free) == 0 {
			continue
		}
		pick := free[rng.Intn(len(free))]
		assignment[i] = pick
		used[pick] = true
	}
	return assignment
}

// refine tries random single-incident reassignments, keeping each change
// that lowers the objective.
func (s *solver) refine(rng *rand.Rand, assignment []int, iters int) []int {
	best := append([]int(nil), assignment...)
	bestScore := s.evaluate(best)

	used := make([]bool, len(s.units))
	for _, j := range best {
		if j >= 0 {
			used[j] = true
		}
	}

	for iter := 0; iter < iters; iter++ {
		i := rng.Intn(len(s.incidents))
		old := best[i]

		free := make([]int, 0, len(s.eligible[i]))
		for _, j := range s.eligible[i] {
			if j == old || !used[j] {
				free = append(free, j)
			}
		}
		if len(free) == 0 {
			continue
		}
		next := free[rng.Intn(len(free))]
		if next == old {
			continue
		}

		candidate := append([]int(nil), best...)
		candidate[i] = next
		score := s.evaluate(candidate)
		if score < bestScore {
			if old >= 0 {
				used[old] = false
			}
			used[next] = true
			best = candidate
			bestScore = score
		}
	}
	return best
}

func (s *solver) evaluate(assignment []int) float64 {
	total := 0.0
	for i, j := range assignment {
		inc := s.incidents[i]
		if j < 0 {
			total += UncoveredPenalty
			continue
		}
		u := s.units[j]
		total += s.costs.EstimateCost(u, inc)

		gap := float64(inc.Severity) - u.Capability
		if gap > 0 {
			total += gap * UnderPowerWeight
		} else if -gap > overProvisionSlack {
			total += OverProvisionPenalty
		}
	}
	return total
}

func (s *solver) plan(assignment []int) Plan {
	p := Plan{Assignments: make(map[string]string, len(s.incidents))}
	for i, inc := range s.incidents {
		j := -1
		if assignment != nil {
			j = assignment[i]
		}
		if j < 0 {
			p.Unassigned = append(p.Unassigned, inc.ID)
			continue
		}
		p.Assignments[inc.ID] = s.units[j].ID
		p.TotalCost += s.costs.EstimateCost(s.units[j], inc)
	}
	if assignment != nil {
		p.Objective = s.evaluate(assignment)
	}
	return p
}
