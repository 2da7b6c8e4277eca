package radar

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExperimentRecord is the persisted summary of one completed collection run.
type ExperimentRecord struct {
	RunID          string          `json:"run_id"`
	ConfigName     string          `json:"config_name,omitempty"`
	TargetDistance float64         `json:"target_distance"`
	PlaybackID     string          `json:"playback_id,omitempty"`
	EndReason      string          `json:"end_reason"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    time.Time       `json:"completed_at"`
	TotalPoints    int             `json:"total_points"`
	MeanIntensity  float64         `json:"mean_intensity"`
	DistanceBands  json.RawMessage `json:"distance_bands,omitempty"`
}

// ExperimentStore provides persistence for collection run records.
type ExperimentStore struct {
	db *sql.DB
}

// NewExperimentStore creates a new ExperimentStore.
func NewExperimentStore(db *sql.DB) *ExperimentStore {
	return &ExperimentStore{db: db}
}

// Insert writes a new run record. If rec.RunID is empty, a new UUID is
// generated.
func (s *ExperimentStore) Insert(rec *ExperimentRecord) error {
	if rec.RunID == "" {
		rec.RunID = uuid.New().String()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	query := `
		INSERT INTO experiments (
			run_id, config_name, target_distance, playback_id, end_reason,
			started_at, completed_at, total_points, mean_intensity, distance_bands
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		rec.RunID,
		nullString(rec.ConfigName),
		rec.TargetDistance,
		nullString(rec.PlaybackID),
		rec.EndReason,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.CompletedAt.UTC().Format(time.RFC3339Nano),
		rec.TotalPoints,
		rec.MeanIntensity,
		nullString(string(rec.DistanceBands)),
	)
	if err != nil {
		return fmt.Errorf("insert experiment: %w", err)
	}

	return nil
}

// Get retrieves a run record by id. Returns (nil, nil) when no record
// exists.
func (s *ExperimentStore) Get(runID string) (*ExperimentRecord, error) {
	query := `
		SELECT run_id, config_name, target_distance, playback_id, end_reason,
		       started_at, completed_at, total_points, mean_intensity, distance_bands
		FROM experiments
		WHERE run_id = ?
	`

	rec, err := scanExperiment(s.db.QueryRow(query, runID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get experiment: %w", err)
	}
	return rec, nil
}

// List retrieves the most recent run records, newest first. A limit of 0
// defaults to 20; the maximum is 100.
func (s *ExperimentStore) List(limit int) ([]*ExperimentRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := `
		SELECT run_id, config_name, target_distance, playback_id, end_reason,
		       started_at, completed_at, total_points, mean_intensity, distance_bands
		FROM experiments
		ORDER BY completed_at DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	defer rows.Close()

	var recs []*ExperimentRecord
	for rows.Next() {
		rec, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan experiment row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list experiments rows: %w", err)
	}

	return recs, nil
}

// Delete removes a run record by id.
func (s *ExperimentStore) Delete(runID string) error {
	result, err := s.db.Exec(`DELETE FROM experiments WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete experiment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("experiment not found: %s", runID)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExperiment(row rowScanner) (*ExperimentRecord, error) {
	var rec ExperimentRecord
	var configName, playbackID, bands sql.NullString
	var startedAt, completedAt string

	err := row.Scan(
		&rec.RunID,
		&configName,
		&rec.TargetDistance,
		&playbackID,
		&rec.EndReason,
		&startedAt,
		&completedAt,
		&rec.TotalPoints,
		&rec.MeanIntensity,
		&bands,
	)
	if err != nil {
		return nil, err
	}

	if configName.Valid {
		rec.ConfigName = configName.String
	}
	if playbackID.Valid {
		rec.PlaybackID = playbackID.String
	}
	if bands.Valid && bands.String != "" {
		rec.DistanceBands = json.RawMessage(bands.String)
	}
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if rec.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}

	return &rec, nil
}

// nullString converts an empty string to nil for SQL storage.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
