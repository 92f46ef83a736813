// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"

	"github.com/oshima/ec2-backup/internal/backup"
)

const (
	schemaVersion      = 1
	defaultBusyTimeout = 5000
	defaultLimit       = 50
)

//go:embed schema.sql
var schema string

var ErrNoPath = errors.New("journal path is required")

// Entry is one recorded leaf outcome.
type Entry struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Type       string    `json:"type"`
	VolumeID   string    `json:"volume_id"`
	Name       string    `json:"name"`
	Region     string    `json:"region"`
	Remote     bool      `json:"remote"`
	Action     string    `json:"action"`
	SnapshotID string    `json:"snapshot_id"`
	Deleted    int       `json:"deleted"`
	DryRun     bool      `json:"dry_run"`
	Reason     string    `json:"reason"`
	Error      string    `json:"error"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
}

// Journal is a SQLite backed outcome log. It implements backup.Observer.
type Journal struct {
	db *sql.DB
}

// Open opens, creating when necessary, the journal at path. The database
// runs in WAL mode on a single connection.
func Open(ctx context.Context, path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrNoPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("journal: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout),
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal: %s: %w", p, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("journal: read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("journal: record schema version: %w", err)
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

type runIDKey struct{}

// NewRunID returns a fresh run id.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID tags ctx so outcomes observed under it share a run id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id carried by ctx, if any.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// Record stores e, filling in missing ids.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.RunID == "" {
		e.RunID = e.ID
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO outcomes(id, run_id, type, volume_id, name, region, remote, action,
		   snapshot_id, deleted, dry_run, reason, error, started_at, finished_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.RunID, e.Type, e.VolumeID, e.Name, e.Region, e.Remote, e.Action,
		e.SnapshotID, e.Deleted, e.DryRun, e.Reason, e.Error,
		formatTime(e.Started), formatTime(e.Finished),
	)
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// Observe records a leaf outcome. Write failures are logged, never returned.
func (j *Journal) Observe(ctx context.Context, o backup.Outcome, err error) {
	e := FromOutcome(o, err)
	e.RunID, _ = RunID(ctx)
	// The leaf context may already be cancelled; the record should still land.
	if rerr := j.Record(context.WithoutCancel(ctx), e); rerr != nil {
		log.WithError(rerr).Warn("journal write failed")
	}
}

// FromOutcome converts a leaf outcome to an entry.
func FromOutcome(o backup.Outcome, err error) Entry {
	e := Entry{
		Type:       o.Job.Type,
		VolumeID:   o.Job.VolumeID,
		Name:       o.Job.Name,
		Region:     o.Region,
		Remote:     o.Remote,
		Action:     string(o.Action),
		SnapshotID: o.SnapshotID,
		Deleted:    len(o.Deleted),
		DryRun:     o.DryRun,
		Reason:     o.Reason,
		Started:    o.Started,
		Finished:   o.Finished,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Query narrows List.
type Query struct {
	RunID    string
	VolumeID string
	Since    time.Time
	Limit    int
}

// List returns entries, newest first.
func (j *Journal) List(ctx context.Context, q Query) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if q.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, q.RunID)
	}
	if q.VolumeID != "" {
		where = append(where, "volume_id = ?")
		args = append(args, q.VolumeID)
	}
	if !q.Since.IsZero() {
		where = append(where, "started_at >= ?")
		args = append(args, formatTime(q.Since))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	stmt := `SELECT id, run_id, type, volume_id, name, region, remote, action,
	           snapshot_id, deleted, dry_run, reason, error, started_at, finished_at
	         FROM outcomes`
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY started_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			started, finished string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Type, &e.VolumeID, &e.Name, &e.Region, &e.Remote,
			&e.Action, &e.SnapshotID, &e.Deleted, &e.DryRun, &e.Reason, &e.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Started = parseTime(started)
		e.Finished = parseTime(finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries started before cutoff and returns how many went.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, "DELETE FROM outcomes WHERE started_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return res.RowsAffected()
}

// Timestamps are stored as fixed width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		log.Debugf("journal: bad timestamp %q", s)
		return time.Time{}
	}
	return t
}

var _ backup.Observer = (*Journal)(nil)
