package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseSeverity(t *testing.T) {
	cases := map[string]Severity{
		"low":      SeverityLow,
		"MEDIUM":   SeverityMedium,
		" High ":   SeverityHigh,
		"critical": SeverityCritical,
	}
	for raw, want := range cases {
		got, err := ParseSeverity(raw)
		if err != nil {
			t.Fatalf("ParseSeverity(%q) failed: %v", raw, err)
		}
		if got != want {
			t.Errorf("ParseSeverity(%q) = %v, want %v", raw, got, want)
		}
	}

	if _, err := ParseSeverity("apocalyptic"); !errors.Is(err, ErrInvalidSeverity) {
		t.Errorf("expected ErrInvalidSeverity, got %v", err)
	}
}

func TestSeverityOrdering(t *testing.T) {
	if !(SeverityCritical > SeverityHigh && SeverityHigh > SeverityMedium && SeverityMedium > SeverityLow) {
		t.Error("severity ordering broken")
	}
}

func TestIncidentTransitions(t *testing.T) {
	inc := &Incident{ID: "i1", Status: IncidentOpen}

	if err := inc.Transition(IncidentResolved); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("OPEN -> RESOLVED should be rejected, got %v", err)
	}
	if err := inc.Transition(IncidentAssigned); err != nil {
		t.Fatalf("OPEN -> ASSIGNED failed: %v", err)
	}
	if err := inc.Transition(IncidentOpen); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ASSIGNED -> OPEN should be rejected, got %v", err)
	}
	if err := inc.Transition(IncidentResolved); err != nil {
		t.Fatalf("ASSIGNED -> RESOLVED failed: %v", err)
	}
	if err := inc.Transition(IncidentCancelled); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("RESOLVED is terminal, got %v", err)
	}
}

func TestUnitTransitions(t *testing.T) {
	u := &Unit{ID: "u1", Status: UnitAvailable}

	if err := u.Transition(UnitOnScene); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("AVAILABLE -> ON_SCENE should be rejected, got %v", err)
	}
	for _, next := range []UnitStatus{UnitEnRoute, UnitOnScene, UnitAvailable, UnitOutOfService, UnitAvailable} {
		if err := u.Transition(next); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
	}
}

func TestPriorityBefore(t *testing.T) {
	t10 := time.Unix(10, 0)
	t12 := time.Unix(12, 0)

	critical := &Incident{ID: "i2", Severity: SeverityCritical, ReportedAt: t12}
	high := &Incident{ID: "i1", Severity: SeverityHigh, ReportedAt: t10}
	if !critical.PriorityBefore(high) {
		t.Error("CRITICAL must dispatch before HIGH regardless of report time")
	}

	older := &Incident{ID: "a", Severity: SeverityHigh, ReportedAt: t10}
	newer := &Incident{ID: "b", Severity: SeverityHigh, ReportedAt: t12}
	if !older.PriorityBefore(newer) {
		t.Error("older incident of equal severity must dispatch first")
	}

	twinA := &Incident{ID: "a", Severity: SeverityLow, ReportedAt: t10}
	twinB := &Incident{ID: "b", Severity: SeverityLow, ReportedAt: t10}
	if !twinA.PriorityBefore(twinB) || twinB.PriorityBefore(twinA) {
		t.Error("ID tie-break must be a strict total order")
	}
}

func TestDistanceKm(t *testing.T) {
	origin := Coordinates{Latitude: 0, Longitude: 0}
	if d := origin.DistanceKm(origin); d != 0 {
		t.Errorf("distance to self = %f, want 0", d)
	}

	// One degree of longitude on the equator is ~111.19 km.
	east := Coordinates{Latitude: 0, Longitude: 1}
	d := origin.DistanceKm(east)
	if d < 111 || d > 112 {
		t.Errorf("equator degree distance = %f, want ~111.19", d)
	}
	if d2 := east.DistanceKm(origin); d2 != d {
		t.Errorf("distance not symmetric: %f vs %f", d, d2)
	}
}
