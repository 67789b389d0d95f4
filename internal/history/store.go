// Package history keeps a local record of monitoring cycles in SQLite.
//
// The store answers "when did this node last clean up, and how much did it
// free?" without log archaeology. It uses modernc.org/sqlite, a pure-Go
// driver, so the binary stays statically linked and runs on minimal base
// images.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shinji-kodama/node-janitor/internal/model"
)

const timeLayout = time.RFC3339Nano

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at        TEXT    NOT NULL,
	finished_at       TEXT    NOT NULL,
	action            TEXT    NOT NULL,
	usage_before      TEXT    NOT NULL,
	usage_after       TEXT    NOT NULL,
	reclaimed_bytes   INTEGER NOT NULL DEFAULT 0,
	workspace_cleaned INTEGER NOT NULL DEFAULT 0,
	error             TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_cycles_started_at ON cycles (started_at);
`

// Entry is one recorded cycle.
type Entry struct {
	ID               int64               `json:"id"`
	StartedAt        time.Time           `json:"startedAt"`
	FinishedAt       time.Time           `json:"finishedAt"`
	Action           model.CycleAction   `json:"action"`
	Before           []model.UsageReport `json:"before"`
	After            []model.UsageReport `json:"after,omitempty"`
	ReclaimedBytes   uint64              `json:"reclaimedBytes"`
	WorkspaceCleaned bool                `json:"workspaceCleaned"`
	Error            string              `json:"error,omitempty"`
}

// Store is a SQLite-backed cycle history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", path, err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY; the
	// janitor writes at most once per cycle.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a cycle result.
func (s *Store) Record(ctx context.Context, res model.CycleResult) error {
	before, err := json.Marshal(nonNil(res.Before))
	if err != nil {
		return err
	}
	after, err := json.Marshal(nonNil(res.After))
	if err != nil {
		return err
	}

	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}
	cleaned := 0
	if res.WorkspaceCleaned {
		cleaned = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cycles (started_at, finished_at, action, usage_before, usage_after, reclaimed_bytes, workspace_cleaned, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		res.StartedAt.UTC().Format(timeLayout),
		res.FinishedAt.UTC().Format(timeLayout),
		res.Action.String(),
		string(before),
		string(after),
		int64(res.SpaceReclaimed()),
		cleaned,
		errText,
	)
	if err != nil {
		return fmt.Errorf("failed to record cycle: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, action, usage_before, usage_after, reclaimed_bytes, workspace_cleaned, error
		FROM cycles
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                         Entry
			started, finished, action string
			before, after             string
			reclaimed                 int64
			cleaned                   int
		)
		if err := rows.Scan(&e.ID, &started, &finished, &action, &before, &after, &reclaimed, &cleaned, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}

		if e.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("history row %d: bad started_at: %w", e.ID, err)
		}
		if e.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("history row %d: bad finished_at: %w", e.ID, err)
		}
		if e.Action, err = model.ParseCycleAction(action); err != nil {
			return nil, fmt.Errorf("history row %d: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(before), &e.Before); err != nil {
			return nil, fmt.Errorf("history row %d: bad usage_before: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(after), &e.After); err != nil {
			return nil, fmt.Errorf("history row %d: bad usage_after: %w", e.ID, err)
		}
		e.ReclaimedBytes = uint64(reclaimed)
		e.WorkspaceCleaned = cleaned != 0

		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nonNil(r []model.UsageReport) []model.UsageReport {
	if r == nil {
		return []model.UsageReport{}
	}
	return r
}
