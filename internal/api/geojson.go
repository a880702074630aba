package api

import (
	"strings"

	"github.com/jmcale/go-incident-dispatch/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func toGeoJSON(incidents []models.Incident) FeatureCollection {
	features := make([]Feature, 0, len(incidents))

	for _, inc := range incidents {
		f := Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{inc.Location.Longitude, inc.Location.Latitude},
			},
			Properties: map[string]any{
				"id":          inc.ID,
				"severity":    strings.ToLower(inc.Severity.String()),
				"unit_type":   string(inc.UnitType),
				"status":      string(inc.Status),
				"description": inc.Description,
				"reported_at": inc.ReportedAt,
			},
		}
		features = append(features, f)
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
