package costmodel

import (
	"testing"

	"github.com/jmcale/go-incident-dispatch/internal/models"
)

func testUnit(lon float64) models.Unit {
	return models.Unit{
		ID:         "u1",
		Type:       models.UnitTypePatrol,
		HourlyRate: 20,
		Location:   models.Coordinates{Latitude: 0, Longitude: lon},
	}
}

func testIncident(sev models.Severity) models.Incident {
	return models.Incident{
		ID:       "i1",
		Severity: sev,
		Location: models.Coordinates{Latitude: 0, Longitude: 0},
	}
}

func TestEstimateCost_MonotonicInDistance(t *testing.T) {
	m := New(DefaultParams())
	inc := testIncident(models.SeverityHigh)

	prev := -1.0
	for _, lon := range []float64{0, 0.1, 0.5, 1, 2, 5} {
		cost := m.EstimateCost(testUnit(lon), inc)
		if cost <= prev {
			t.Fatalf("cost not monotonic: %f at lon %f after %f", cost, lon, prev)
		}
		prev = cost
	}
}

func TestEstimateCost_Deterministic(t *testing.T) {
	m := New(DefaultParams())
	u := testUnit(1.5)
	inc := testIncident(models.SeverityCritical)

	first := m.EstimateCost(u, inc)
	for i := 0; i < 10; i++ {
		if got := m.EstimateCost(u, inc); got != first {
			t.Fatalf("cost varied between runs: %f vs %f", got, first)
		}
	}
}

func TestEstimateCost_TypeBaseRate(t *testing.T) {
	m := New(DefaultParams())
	inc := testIncident(models.SeverityLow)

	patrol := testUnit(0)
	engine := testUnit(0)
	engine.Type = models.UnitTypeFireEngine

	if m.EstimateCost(engine, inc) <= m.EstimateCost(patrol, inc) {
		t.Error("fire engine base rate should exceed patrol, all else equal")
	}
}

func TestEstimateCost_Overtime(t *testing.T) {
	m := New(DefaultParams())
	inc := testIncident(models.SeverityMedium)

	fresh := testUnit(0)
	fresh.HoursOnShift = 2
	tired := testUnit(0)
	tired.HoursOnShift = 10

	if m.EstimateCost(tired, inc) <= m.EstimateCost(fresh, inc) {
		t.Error("unit past the overtime threshold should cost more")
	}
}

func TestEstimateCost_UrgencyMultiplier(t *testing.T) {
	m := New(DefaultParams())
	u := testUnit(1)

	low := m.EstimateCost(u, testIncident(models.SeverityLow))
	critical := m.EstimateCost(u, testIncident(models.SeverityCritical))
	if critical <= low {
		t.Error("critical urgency multiplier should raise the recorded cost")
	}
}

func TestEstimateCost_UnknownTypeUsesDefault(t *testing.T) {
	params := DefaultParams()
	params.DefaultBaseRate = 100
	m := New(params)

	u := testUnit(0)
	u.Type = models.UnitType("HELICOPTER")
	inc := testIncident(models.SeverityLow)

	if got := m.EstimateCost(u, inc); got < 100 {
		t.Errorf("expected default base rate to apply, got %f", got)
	}
}
