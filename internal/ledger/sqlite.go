package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jmcale/go-incident-dispatch/internal/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening ledger database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging ledger database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating ledger database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS ledger_entries (
			id TEXT PRIMARY KEY,
			assignment_id TEXT NOT NULL,
			incident_id TEXT NOT NULL,
			unit_id TEXT NOT NULL,
			event TEXT NOT NULL,
			severity TEXT NOT NULL,
			cost REAL NOT NULL,
			distance_km REAL NOT NULL,
			ref_entry_id TEXT,
			recorded_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_ledger_assignment_id ON ledger_entries(assignment_id);
		CREATE INDEX IF NOT EXISTS idx_ledger_incident_id ON ledger_entries(incident_id);
		CREATE INDEX IF NOT EXISTS idx_ledger_unit_id ON ledger_entries(unit_id);
		CREATE INDEX IF NOT EXISTS idx_ledger_recorded_at ON ledger_entries(recorded_at);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record appends one entry. There is no update path: past rows are
// immutable and corrections arrive as new rows.
func (s *SQLiteStore) Record(ctx context.Context, e *Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	query := `
		INSERT INTO ledger_entries
			(id, assignment_id, incident_id, unit_id, event, severity, cost, distance_km, ref_entry_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.AssignmentID,
		e.IncidentID,
		e.UnitID,
		string(e.Event),
		e.Severity.String(),
		e.Cost,
		e.DistanceKm,
		e.RefEntryID,
		e.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting ledger entry %s: %w", e.ID, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, opts Filter) ([]Entry, error) {
	query := `
		SELECT id, assignment_id, incident_id, unit_id, event, severity, cost, distance_km, ref_entry_id, recorded_at
		FROM ledger_entries
	`
	var conditions []string
	var args []any

	if opts.IncidentID != "" {
		conditions = append(conditions, "incident_id = ?")
		args = append(args, opts.IncidentID)
	}
	if opts.UnitID != "" {
		conditions = append(conditions, "unit_id = ?")
		args = append(args, opts.UnitID)
	}
	if opts.AssignmentID != "" {
		conditions = append(conditions, "assignment_id = ?")
		args = append(args, opts.AssignmentID)
	}
	if opts.Event != nil {
		conditions = append(conditions, "event = ?")
		args = append(args, string(*opts.Event))
	}
	if opts.Since != nil {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, *opts.Since)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY recorded_at DESC, id DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var event, severity string
		var refID sql.NullString
		if err := rows.Scan(
			&e.ID,
			&e.AssignmentID,
			&e.IncidentID,
			&e.UnitID,
			&event,
			&severity,
			&e.Cost,
			&e.DistanceKm,
			&refID,
			&e.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning ledger entry: %w", err)
		}
		e.Event = EventType(event)
		if sev, err := models.ParseSeverity(severity); err == nil {
			e.Severity = sev
		}
		e.RefEntryID = refID.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}
