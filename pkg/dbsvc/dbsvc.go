// Package dbsvc records executed transfers in the transfer_log table and
// reads them back for the history command.
package dbsvc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sgaunet/s3box/pkg/transfer"
)

const (
	// DefaultHistoryLimit is the number of entries returned when no limit is given.
	DefaultHistoryLimit = 20
	// MaxHistoryLimit caps the number of entries of one query.
	MaxHistoryLimit = 500
)

// ErrNoDatabase is returned when the service has no connection.
var ErrNoDatabase = errors.New("no database configured")

// Entry is one row of the transfer log.
type Entry struct {
	ID         int64     `json:"id"`
	Namespace  string    `json:"namespace"`
	Kind       string    `json:"kind"`
	Direction  string    `json:"direction"`
	RemoteKey  string    `json:"remote_key"`
	LocalPath  string    `json:"local_path,omitempty"`
	State      string    `json:"state"`
	Reason     string    `json:"reason,omitempty"`
	Bytes      int64     `json:"bytes"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Service provides database operations for the transfer history
type Service struct {
	db  *sql.DB
	now func() time.Time
	log *slog.Logger
}

// NewService creates a new database service
func NewService(db *sql.DB) *Service {
	return &Service{
		db:  db,
		now: time.Now,
		log: slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets the logger for the service
func (s *Service) SetLogger(log *slog.Logger) {
	s.log = log
}

// RecordResult appends every outcome of res to the log in one transaction and
// returns the number of rows written. Listings carry no outcome and write nothing.
func (s *Service) RecordResult(ctx context.Context, namespace string, res *transfer.Result) (int, error) {
	if s.db == nil {
		return 0, ErrNoDatabase
	}
	entries := Entries(namespace, res, s.now().UTC())
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("RecordResult: failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transfer_log
		(namespace, kind, direction, remote_key, local_path, state, reason, bytes, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return 0, fmt.Errorf("RecordResult: failed to prepare insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Namespace, e.Kind, e.Direction, e.RemoteKey,
			e.LocalPath, e.State, e.Reason, e.Bytes, e.RecordedAt); err != nil {
			return 0, fmt.Errorf("RecordResult: failed to insert %q: %w", e.RemoteKey, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("RecordResult: failed to commit: %w", err)
	}

	s.log.Debug("Transfer recorded",
		slog.String("namespace", namespace),
		slog.String("kind", string(res.Kind)),
		slog.Int("rows", len(entries)))
	return len(entries), nil
}

// RecentTransfers returns the latest entries of namespace, newest first.
func (s *Service) RecentTransfers(ctx context.Context, namespace string, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, namespace, kind, direction, remote_key,
		local_path, state, reason, bytes, recorded_at
		FROM transfer_log WHERE namespace = $1
		ORDER BY recorded_at DESC, id DESC LIMIT $2`, namespace, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("RecentTransfers: failed to query transfer log: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Namespace, &e.Kind, &e.Direction, &e.RemoteKey,
			&e.LocalPath, &e.State, &e.Reason, &e.Bytes, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("RecentTransfers: failed to scan row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RecentTransfers: %w", err)
	}
	return entries, nil
}

// Ping checks the connection.
func (s *Service) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrNoDatabase
	}
	return s.db.PingContext(ctx)
}

// Entries converts the outcomes of res into log rows.
func Entries(namespace string, res *transfer.Result, at time.Time) []Entry {
	if res == nil {
		return nil
	}
	entries := make([]Entry, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		entries = append(entries, Entry{
			Namespace:  namespace,
			Kind:       string(res.Kind),
			Direction:  string(o.Item.Direction),
			RemoteKey:  o.Item.RemoteKey,
			LocalPath:  o.Item.LocalPath,
			State:      string(o.State),
			Reason:     o.Reason,
			Bytes:      o.Bytes,
			RecordedAt: at,
		})
	}
	return entries
}

// ClampLimit maps a requested limit to the accepted range.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return min(limit, MaxHistoryLimit)
}
