package models

import "time"

type AssignmentResolution string

const (
	ResolutionResolved  AssignmentResolution = "RESOLVED"
	ResolutionCancelled AssignmentResolution = "CANCELLED"
)

// Assignment binds one unit to one incident for the duration of a response.
// It is active from CreatedAt until ClosedAt is set.
type Assignment struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	UnitID     string    `json:"unit_id"`
	Cost       float64   `json:"cost"`
	DistanceKm float64   `json:"distance_km"`
	CreatedAt  time.Time `json:"created_at"`

	Resolution AssignmentResolution `json:"resolution,omitempty"`
	ClosedAt   *time.Time           `json:"closed_at,omitempty"`
}

func (a *Assignment) Active() bool {
	return a.ClosedAt == nil
}
