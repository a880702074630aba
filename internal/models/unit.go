package models

import (
	"fmt"
	"strings"
	"time"
)

type UnitType string

const (
	UnitTypePatrol     UnitType = "PATROL"
	UnitTypeFireEngine UnitType = "FIRE_ENGINE"
	UnitTypeAmbulance  UnitType = "AMBULANCE"
)

func ParseUnitType(raw string) (UnitType, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PATROL":
		return UnitTypePatrol, nil
	case "FIRE_ENGINE":
		return UnitTypeFireEngine, nil
	case "AMBULANCE":
		return UnitTypeAmbulance, nil
	default:
		return "", fmt.Errorf("unknown unit type %q", raw)
	}
}

type UnitStatus string

const (
	UnitAvailable    UnitStatus = "AVAILABLE"
	UnitEnRoute      UnitStatus = "EN_ROUTE"
	UnitOnScene      UnitStatus = "ON_SCENE"
	UnitOutOfService UnitStatus = "OUT_OF_SERVICE"
)

// A unit leaves the pool only from AVAILABLE, and returns to it when its
// assignment closes or it comes back from maintenance.
var unitTransitions = map[UnitStatus][]UnitStatus{
	UnitAvailable:    {UnitEnRoute, UnitOutOfService},
	UnitEnRoute:      {UnitOnScene, UnitAvailable},
	UnitOnScene:      {UnitAvailable},
	UnitOutOfService: {UnitAvailable},
}

func (s UnitStatus) CanTransitionTo(next UnitStatus) bool {
	for _, allowed := range unitTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Unit struct {
	ID       string      `json:"id"`
	Type     UnitType    `json:"type"`
	Status   UnitStatus  `json:"status"`
	Location Coordinates `json:"location"`

	// Capability is the response power rating carried over from fleet
	// records; the planner penalizes capability/severity mismatches.
	Capability float64 `json:"capability"`
	// HourlyRate is the unit's operating cost rate.
	HourlyRate float64 `json:"hourly_rate"`
	// HoursOnShift drives overtime pricing; updated by fleet status feeds.
	HoursOnShift float64 `json:"hours_on_shift"`

	RegisteredAt time.Time `json:"registered_at"`
}

func (u *Unit) Transition(next UnitStatus) error {
	if !u.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: unit %s %s -> %s", ErrInvalidTransition, u.ID, u.Status, next)
	}
	u.Status = next
	return nil
}
