package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmcale/go-incident-dispatch/internal/models"
)

func openIncident(id string, sev models.Severity, reportedUnix int64) models.Incident {
	return models.Incident{
		ID:         id,
		Severity:   sev,
		UnitType:   models.UnitTypePatrol,
		Status:     models.IncidentOpen,
		ReportedAt: time.Unix(reportedUnix, 0),
	}
}

func TestEnqueue_InvalidSeverity(t *testing.T) {
	q := New()
	err := q.Enqueue(models.Incident{ID: "i1", Severity: models.Severity(99)})
	if !errors.Is(err, models.ErrInvalidSeverity) {
		t.Errorf("expected ErrInvalidSeverity, got %v", err)
	}
	if _, ok := q.PeekHighestPriority(); ok {
		t.Error("rejected incident must not be enqueued")
	}
}

func TestEnqueue_Duplicate(t *testing.T) {
	q := New()
	if err := q.Enqueue(openIncident("i1", models.SeverityLow, 1)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := q.Enqueue(openIncident("i1", models.SeverityHigh, 2)); !errors.Is(err, models.ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestOrdering_SeverityThenTimestamp(t *testing.T) {
	q := New()
	q.Enqueue(openIncident("high-old", models.SeverityHigh, 10))
	q.Enqueue(openIncident("critical-new", models.SeverityCritical, 12))
	q.Enqueue(openIncident("high-new", models.SeverityHigh, 15))
	q.Enqueue(openIncident("low", models.SeverityLow, 1))

	want := []string{"critical-new", "high-old", "high-new", "low"}
	for _, id := range want {
		head, ok := q.PeekHighestPriority()
		if !ok {
			t.Fatal("queue empty early")
		}
		if head.ID != id {
			t.Fatalf("head = %s, want %s", head.ID, id)
		}
		if _, err := q.DequeueForAssignment(head.ID); err != nil {
			t.Fatalf("DequeueForAssignment(%s) failed: %v", head.ID, err)
		}
	}
}

func TestOrdering_EqualSeverityFIFO(t *testing.T) {
	q := New()
	q.Enqueue(openIncident("t6", models.SeverityMedium, 6))
	q.Enqueue(openIncident("t5", models.SeverityMedium, 5))

	head, _ := q.PeekHighestPriority()
	if head.ID != "t5" {
		t.Errorf("older report must dispatch first, got %s", head.ID)
	}
}

func TestDequeueForAssignment_Stale(t *testing.T) {
	q := New()
	q.Enqueue(openIncident("i1", models.SeverityHigh, 1))

	if _, err := q.DequeueForAssignment("i1"); err != nil {
		t.Fatalf("first dequeue failed: %v", err)
	}
	if _, err := q.DequeueForAssignment("i1"); !errors.Is(err, models.ErrAlreadyHandled) {
		t.Errorf("stale dequeue: expected ErrAlreadyHandled, got %v", err)
	}
	if _, err := q.DequeueForAssignment("ghost"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEscalate_Reorders(t *testing.T) {
	q := New()
	q.Enqueue(openIncident("first", models.SeverityHigh, 1))
	q.Enqueue(openIncident("second", models.SeverityMedium, 2))

	if err := q.Escalate("second", models.SeverityCritical); err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}

	head, _ := q.PeekHighestPriority()
	if head.ID != "second" {
		t.Errorf("escalated incident should lead the queue, got %s", head.ID)
	}
	if head.Severity != models.SeverityCritical {
		t.Errorf("severity = %s, want CRITICAL", head.Severity)
	}

	// Same identity, not a new incident.
	inc, err := q.Get("second")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if inc.ReportedAt != time.Unix(2, 0) {
		t.Error("escalation must not reset the reported timestamp")
	}
}

func TestEscalate_Downward(t *testing.T) {
	q := New()
	q.Enqueue(openIncident("i1", models.SeverityHigh, 1))
	if err := q.Escalate("i1", models.SeverityLow); err == nil {
		t.Error("downward escalation should be rejected")
	}
}

func TestEscalate_NotOpen(t *testing.T) {
	q := New()
	q.Enqueue(openIncident("i1", models.SeverityHigh, 1))
	q.DequeueForAssignment("i1")
	if err := q.Escalate("i1", models.SeverityCritical); !errors.Is(err, models.ErrAlreadyHandled) {
		t.Errorf("expected ErrAlreadyHandled, got %v", err)
	}
}

func TestCancel_OpenAndAssigned(t *testing.T) {
	q := New()
	q.Enqueue(openIncident("open", models.SeverityHigh, 1))
	q.Enqueue(openIncident("assigned", models.SeverityHigh, 2))
	q.Enqueue(openIncident("bystander", models.SeverityLow, 3))
	q.DequeueForAssignment("assigned")

	prev, err := q.Cancel("open")
	if err != nil {
		t.Fatalf("Cancel(open) failed: %v", err)
	}
	if prev != models.IncidentOpen {
		t.Errorf("prev status = %s, want OPEN", prev)
	}

	// Removing two entries must leave the remaining OPEN incident intact.
	next, ok := q.PeekHighestPriority()
	if !ok || next.ID != "bystander" {
		t.Fatalf("expected bystander at queue head, got %+v (ok=%v)", next, ok)
	}

	prev, err = q.Cancel("assigned")
	if err != nil {
		t.Fatalf("Cancel(assigned) failed: %v", err)
	}
	if prev != models.IncidentAssigned {
		t.Errorf("prev status = %s, want ASSIGNED", prev)
	}

	// Cancelled incidents never return to the queue.
	if _, err := q.Cancel("open"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("double cancel: expected ErrInvalidTransition, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	q := New()
	q.Enqueue(openIncident("i1", models.SeverityHigh, 1))

	if err := q.Resolve("i1"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("resolving an OPEN incident should fail, got %v", err)
	}
	q.DequeueForAssignment("i1")
	if err := q.Resolve("i1"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	inc, _ := q.Get("i1")
	if inc.Status != models.IncidentResolved {
		t.Errorf("status = %s, want RESOLVED", inc.Status)
	}
}

func TestDepths(t *testing.T) {
	q := New()
	for i := 0; i < 3; i++ {
		q.Enqueue(openIncident(fmt.Sprintf("h%d", i), models.SeverityHigh, int64(i)))
	}
	q.Enqueue(openIncident("c0", models.SeverityCritical, 9))
	q.DequeueForAssignment("c0")

	depths := q.Depths()
	if depths[models.SeverityHigh] != 3 {
		t.Errorf("HIGH depth = %d, want 3", depths[models.SeverityHigh])
	}
	if depths[models.SeverityCritical] != 0 {
		t.Errorf("assigned incident counted in depth: %d", depths[models.SeverityCritical])
	}
}

func TestOpenIncidents_Sorted(t *testing.T) {
	q := New()
	q.Enqueue(openIncident("b", models.SeverityMedium, 5))
	q.Enqueue(openIncident("a", models.SeverityCritical, 9))
	q.Enqueue(openIncident("c", models.SeverityMedium, 2))

	got := q.OpenIncidents()
	want := []string{"a", "c", "b"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
		}
	}
}
