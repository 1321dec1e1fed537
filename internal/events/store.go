package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jal-drishti/streamd/internal/logger"
)

// Store persists events in a SQLite database
type Store struct {
	db      *sql.DB
	maxRows int
	logger  *logger.Logger
	mu      sync.Mutex
}

// NewStore opens (and creates if needed) the event database at dbPath.
// When the row count exceeds maxRows the oldest events are pruned on
// insert; maxRows <= 0 disables pruning.
func NewStore(dbPath string, maxRows int, log *logger.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support concurrent writes well
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:      db,
		maxRows: maxRows,
		logger:  log,
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		state TEXT,
		frame_id INTEGER,
		max_confidence REAL,
		message TEXT,
		detections TEXT, -- JSON array
		timestamp TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_type_timestamp ON events(event_type, timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveEvent inserts an event and prunes the oldest rows past the cap
func (s *Store) SaveEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var detections []byte
	if len(event.Detections) > 0 {
		var err error
		detections, err = json.Marshal(event.Detections)
		if err != nil {
			return fmt.Errorf("failed to marshal detections: %w", err)
		}
	}

	query := `
		INSERT INTO events (id, event_type, state, frame_id, max_confidence, message, detections, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.Type, event.State, event.FrameID,
		event.MaxConfidence, event.Message, string(detections), event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	s.logger.Debug("Event saved",
		"event_id", event.ID,
		"event_type", event.Type,
		"state", event.State,
	)

	if s.maxRows > 0 {
		return s.prune(ctx)
	}
	return nil
}

func (s *Store) prune(ctx context.Context) error {
	query := `
		DELETE FROM events WHERE id IN (
			SELECT id FROM events ORDER BY timestamp DESC LIMIT -1 OFFSET ?
		)
	`
	if _, err := s.db.ExecContext(ctx, query, s.maxRows); err != nil {
		return fmt.Errorf("failed to prune events: %w", err)
	}
	return nil
}

// ListEvents retrieves the most recent events, optionally filtered by type
func (s *Store) ListEvents(ctx context.Context, eventType string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, event_type, state, frame_id, max_confidence, message, detections, timestamp
		FROM events
	`
	args := []interface{}{}
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var detections string
		if err := rows.Scan(&e.ID, &e.Type, &e.State, &e.FrameID,
			&e.MaxConfidence, &e.Message, &detections, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if detections != "" {
			if err := json.Unmarshal([]byte(detections), &e.Detections); err != nil {
				return nil, fmt.Errorf("failed to unmarshal detections: %w", err)
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// CountEvents counts stored events, optionally filtered by type
func (s *Store) CountEvents(ctx context.Context, eventType string) (int, error) {
	query := `SELECT COUNT(*) FROM events`
	args := []interface{}{}
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, eventType)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}
