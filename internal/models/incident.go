package models

import (
	"fmt"
	"time"
)

type IncidentStatus string

const (
	IncidentOpen      IncidentStatus = "OPEN"
	IncidentAssigned  IncidentStatus = "ASSIGNED"
	IncidentResolved  IncidentStatus = "RESOLVED"
	IncidentCancelled IncidentStatus = "CANCELLED"
)

// incidentTransitions enumerates the legal status changes. RESOLVED and
// CANCELLED are terminal.
var incidentTransitions = map[IncidentStatus][]IncidentStatus{
	IncidentOpen:     {IncidentAssigned, IncidentCancelled},
	IncidentAssigned: {IncidentResolved, IncidentCancelled},
}

func (s IncidentStatus) CanTransitionTo(next IncidentStatus) bool {
	for _, allowed := range incidentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Incident struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Severity    Severity       `json:"severity"`
	UnitType    UnitType       `json:"unit_type"` // kind of unit required on scene
	Location    Coordinates    `json:"location"`
	Status      IncidentStatus `json:"status"`
	ReportedAt  time.Time      `json:"reported_at"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (i *Incident) Transition(next IncidentStatus) error {
	if !i.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: incident %s %s -> %s", ErrInvalidTransition, i.ID, i.Status, next)
	}
	i.Status = next
	return nil
}

// PriorityBefore reports whether i dispatches ahead of other: higher severity
// first, then older report, then ID for a stable total order.
func (i *Incident) PriorityBefore(other *Incident) bool {
	if i.Severity != other.Severity {
		return i.Severity > other.Severity
	}
	if !i.ReportedAt.Equal(other.ReportedAt) {
		return i.ReportedAt.Before(other.ReportedAt)
	}
	return i.ID < other.ID
}
