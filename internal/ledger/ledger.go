package ledger

import (
	"context"
	"time"

	"github.com/jmcale/go-incident-dispatch/internal/models"
)

type EventType string

const (
	EventAssigned  EventType = "ASSIGNED"
	EventResolved  EventType = "RESOLVED"
	EventCancelled EventType = "CANCELLED"
)

// Entry is one append-only ledger row. Closing events never mutate the
// opening row; they reference it through RefEntryID.
type Entry struct {
	ID           string          `json:"id"`
	AssignmentID string          `json:"assignment_id"`
	IncidentID   string          `json:"incident_id"`
	UnitID       string          `json:"unit_id"`
	Event        EventType       `json:"event"`
	Severity     models.Severity `json:"severity"`
	Cost         float64         `json:"cost"`
	DistanceKm   float64         `json:"distance_km"`
	RefEntryID   string          `json:"ref_entry_id,omitempty"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

type Filter struct {
	Limit        int
	IncidentID   string
	UnitID       string
	AssignmentID string
	Event        *EventType
	Since        *time.Time
}

// Store persists ledger entries. The ledger is audit-only: allocation
// decisions never read from it.
type Store interface {
	Record(ctx context.Context, e *Entry) error
	List(ctx context.Context, opts Filter) ([]Entry, error)
}
