package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmcale/go-incident-dispatch/internal/models"
)

// ParseUnits reads a fleet roster CSV. Expected header:
//
//	id,type,latitude,longitude,capability,hourly_rate
//
// id may be empty, in which case one is generated.
func ParseUnits(r io.Reader) ([]models.Unit, error) {
	rows, header, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(header, "type", "latitude", "longitude"); err != nil {
		return nil, err
	}

	units := make([]models.Unit, 0, len(rows))
	for i, row := range rows {
		line := i + 2 // header is line 1

		utype, err := models.ParseUnitType(field(row, header, "type"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		lat, lon, err := parseLatLon(row, header)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		u := models.Unit{
			ID:       field(row, header, "id"),
			Type:     utype,
			Status:   models.UnitAvailable,
			Location: models.Coordinates{Latitude: lat, Longitude: lon},
		}
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		if raw := field(row, header, "capability"); raw != "" {
			if u.Capability, err = strconv.ParseFloat(raw, 64); err != nil {
				return nil, fmt.Errorf("row %d: invalid capability %q", line, raw)
			}
		}
		if raw := field(row, header, "hourly_rate"); raw != "" {
			if u.HourlyRate, err = strconv.ParseFloat(raw, 64); err != nil {
				return nil, fmt.Errorf("row %d: invalid hourly_rate %q", line, raw)
			}
		}
		units = append(units, u)
	}
	return units, nil
}

// ParseIncidents reads an incident backlog CSV. Expected header:
//
//	id,severity,unit_type,latitude,longitude,description,reported_at
//
// reported_at is RFC 3339 and defaults to now when empty.
func ParseIncidents(r io.Reader) ([]models.Incident, error) {
	rows, header, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(header, "severity", "unit_type", "latitude", "longitude"); err != nil {
		return nil, err
	}

	incidents := make([]models.Incident, 0, len(rows))
	for i, row := range rows {
		line := i + 2

		sev, err := models.ParseSeverity(field(row, header, "severity"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		utype, err := models.ParseUnitType(field(row, header, "unit_type"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		lat, lon, err := parseLatLon(row, header)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		inc := models.Incident{
			ID:          field(row, header, "id"),
			Severity:    sev,
			UnitType:    utype,
			Description: field(row, header, "description"),
			Status:      models.IncidentOpen,
			Location:    models.Coordinates{Latitude: lat, Longitude: lon},
		}
		if inc.ID == "" {
			inc.ID = uuid.NewString()
		}
		if raw := field(row, header, "reported_at"); raw != "" {
			inc.ReportedAt, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid reported_at %q", line, raw)
			}
		} else {
			inc.ReportedAt = time.Now()
		}
		incidents = append(incidents, inc)
	}
	return incidents, nil
}

func readAll(r io.Reader) ([][]string, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("error reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("csv is empty")
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return records[1:], header, nil
}

func requireColumns(header map[string]int, names ...string) error {
	for _, name := range names {
		if _, ok := header[name]; !ok {
			return fmt.Errorf("csv missing required column %q", name)
		}
	}
	return nil
}

func field(row []string, header map[string]int, name string) string {
	i, ok := header[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseLatLon(row []string, header map[string]int) (float64, float64, error) {
	lat, err := strconv.ParseFloat(field(row, header, "latitude"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q", field(row, header, "latitude"))
	}
	lon, err := strconv.ParseFloat(field(row, header, "longitude"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q", field(row, header, "longitude"))
	}
	return lat, lon, nil
}
