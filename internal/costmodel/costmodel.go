package costmodel

import (
	"github.com/jmcale/go-incident-dispatch/internal/models"
)

// Params configure the marginal-cost function. All rates and multipliers
// must be positive to keep the model monotonic in distance.
type Params struct {
	// TypeBaseRates price a dispatch by unit type; DefaultBaseRate covers
	// types with no explicit entry.
	TypeBaseRates   map[models.UnitType]float64
	DefaultBaseRate float64

	// PerKmRate prices travel distance.
	PerKmRate float64

	// UrgencyMultipliers scale the total by incident severity.
	UrgencyMultipliers map[models.Severity]float64

	// Units past OvertimeThresholdHours on shift cost OvertimeMultiplier
	// times their hourly rate.
	OvertimeThresholdHours float64
	OvertimeMultiplier     float64
}

func DefaultParams() Params {
	return Params{
		TypeBaseRates: map[models.UnitType]float64{
			models.UnitTypePatrol:     10,
			models.UnitTypeAmbulance:  18,
			models.UnitTypeFireEngine: 25,
		},
		DefaultBaseRate: 15,
		PerKmRate:       2,
		UrgencyMultipliers: map[models.Severity]float64{
			models.SeverityLow:      1.0,
			models.SeverityMedium:   1.1,
			models.SeverityHigh:     1.25,
			models.SeverityCritical: 1.5,
		},
		OvertimeThresholdHours: 8,
		OvertimeMultiplier:     1.5,
	}
}

// Model computes marginal operational cost. It is a pure function of its
// inputs: no clock, no I/O, identical inputs always price identically.
type Model struct {
	params Params
}

func New(params Params) *Model {
	return &Model{params: params}
}

// EstimateCost prices assigning u to inc. Monotonic in travel distance:
// a farther unit is never cheaper, all else equal.
func (m *Model) EstimateCost(u models.Unit, inc models.Incident) float64 {
	base, ok := m.params.TypeBaseRates[u.Type]
	if !ok {
		base = m.params.DefaultBaseRate
	}

	hourly := u.HourlyRate
	if u.HoursOnShift > m.params.OvertimeThresholdHours {
		hourly *= m.params.OvertimeMultiplier
	}

	urgency, ok := m.params.UrgencyMultipliers[inc.Severity]
	if !ok {
		urgency = 1
	}

	distance := u.Location.DistanceKm(inc.Location)
	return (base + hourly + distance*m.params.PerKmRate) * urgency
}
