package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jmcale/go-incident-dispatch/internal/models"
)

func patrolAt(id string, lat, lon float64) models.Unit {
	return models.Unit{
		ID:       id,
		Type:     models.UnitTypePatrol,
		Status:   models.UnitAvailable,
		Location: models.Coordinates{Latitude: lat, Longitude: lon},
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r := New()
	if err := r.Register(patrolAt("u1", 0, 0)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(patrolAt("u1", 1, 1)); !errors.Is(err, models.ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestSetStatus_NotFound(t *testing.T) {
	r := New()
	if err := r.SetStatus("ghost", models.UnitOutOfService); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetStatus_VisibleImmediately(t *testing.T) {
	r := New()
	r.Register(patrolAt("u1", 0, 0))

	if err := r.SetStatus("u1", models.UnitOutOfService); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if got := r.QueryAvailable(models.Coordinates{}, models.UnitTypePatrol, 0); len(got) != 0 {
		t.Errorf("out-of-service unit still returned by QueryAvailable: %v", got)
	}

	if err := r.SetStatus("u1", models.UnitAvailable); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if got := r.QueryAvailable(models.Coordinates{}, models.UnitTypePatrol, 0); len(got) != 1 {
		t.Errorf("expected 1 available unit, got %d", len(got))
	}
}

func TestQueryAvailable_OrderAndFilters(t *testing.T) {
	r := New()
	r.Register(patrolAt("far", 0, 2))
	r.Register(patrolAt("near", 0, 0.5))
	r.Register(patrolAt("mid", 0, 1))
	r.Register(models.Unit{
		ID: "engine", Type: models.UnitTypeFireEngine, Status: models.UnitAvailable,
	})

	got := r.QueryAvailable(models.Coordinates{}, models.UnitTypePatrol, 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 patrol candidates, got %d", len(got))
	}
	order := []string{"near", "mid", "far"}
	for i, want := range order {
		if got[i].Unit.ID != want {
			t.Errorf("position %d: got %s, want %s", i, got[i].Unit.ID, want)
		}
	}

	// ~111 km per degree; a 120 km radius keeps only the nearest unit.
	got = r.QueryAvailable(models.Coordinates{}, models.UnitTypePatrol, 120)
	if len(got) != 2 {
		t.Errorf("expected 2 candidates within 120 km, got %d", len(got))
	}

	// Restartable: a second query returns the same snapshot.
	again := r.QueryAvailable(models.Coordinates{}, models.UnitTypePatrol, 120)
	if len(again) != len(got) {
		t.Errorf("query not restartable: %d vs %d candidates", len(again), len(got))
	}
}

func TestClaim_SingleWinner(t *testing.T) {
	r := New()
	r.Register(patrolAt("u1", 0, 0))

	const claimers = 32
	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Claim("u1"); err == nil {
				wins.Add(1)
			} else if !errors.Is(err, models.ErrConcurrentClaim) {
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly 1 winning claim, got %d", wins.Load())
	}
	u, err := r.Get("u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if u.Status != models.UnitEnRoute {
		t.Errorf("claimed unit status = %s, want EN_ROUTE", u.Status)
	}
}

func TestClaimReleaseCycle(t *testing.T) {
	r := New()
	r.Register(patrolAt("u1", 0, 0))

	if _, err := r.Claim("u1"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if _, err := r.Claim("u1"); !errors.Is(err, models.ErrConcurrentClaim) {
		t.Errorf("second claim should conflict, got %v", err)
	}
	if err := r.SetStatus("u1", models.UnitOnScene); err != nil {
		t.Fatalf("EN_ROUTE -> ON_SCENE failed: %v", err)
	}
	if err := r.Release("u1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := r.Claim("u1"); err != nil {
		t.Errorf("claim after release failed: %v", err)
	}
}

func TestRelease_NotClaimed(t *testing.T) {
	r := New()
	r.Register(patrolAt("u1", 0, 0))
	if err := r.Release("u1"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("releasing an available unit should fail, got %v", err)
	}
}

func TestSetStatus_CannotFreeClaimedUnit(t *testing.T) {
	r := New()
	r.Register(patrolAt("u1", 0, 0))

	if _, err := r.Claim("u1"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	// The fleet feed must not hand a claimed unit back to the allocator.
	if err := r.SetStatus("u1", models.UnitAvailable); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition freeing a claimed unit, got %v", err)
	}
	if got := r.QueryAvailable(models.Coordinates{}, models.UnitTypePatrol, 0); len(got) != 0 {
		t.Fatalf("claimed unit reappeared as available: %v", got)
	}

	// Progress reports along the assignment still flow.
	if err := r.SetStatus("u1", models.UnitOnScene); err != nil {
		t.Fatalf("EN_ROUTE -> ON_SCENE failed: %v", err)
	}
	if err := r.SetStatus("u1", models.UnitAvailable); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition freeing an on-scene claimed unit, got %v", err)
	}

	if err := r.Release("u1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if got := r.QueryAvailable(models.Coordinates{}, models.UnitTypePatrol, 0); len(got) != 1 {
		t.Errorf("released unit missing from availability: %v", got)
	}
}

func TestSetStatus_UnclaimedEnRouteCanReturn(t *testing.T) {
	r := New()
	r.Register(patrolAt("u1", 0, 0))

	// A unit the fleet moved EN_ROUTE on its own was never claimed, so the
	// feed may bring it back without going through an assignment.
	if err := r.SetStatus("u1", models.UnitEnRoute); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := r.SetStatus("u1", models.UnitAvailable); err != nil {
		t.Errorf("unclaimed EN_ROUTE -> AVAILABLE should succeed, got %v", err)
	}
}
