package sharing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

const uniqueViolation = "unique_violation"

// PGStore keeps the codes in the share_codes table created by dbinit.
type PGStore struct {
	db  *sql.DB
	now func() time.Time
	log *slog.Logger
}

// NewPGStore creates a store on an open database.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{
		db:  db,
		now: time.Now,
		log: slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets the logger
func (s *PGStore) SetLogger(log *slog.Logger) {
	s.log = log
}

// SetClock replaces the time source.
func (s *PGStore) SetClock(now func() time.Time) {
	s.now = now
}

// Generate inserts a new code for path, drawing again on collision.
func (s *PGStore) Generate(ctx context.Context, path string, ttl time.Duration) (Share, error) {
	now := s.now().UTC()
	expiresAt, err := expiry(now, ttl)
	if err != nil {
		return Share{}, err
	}
	var expires sql.NullTime
	if expiresAt != nil {
		expires = sql.NullTime{Time: *expiresAt, Valid: true}
	}

	for range maxGenerateAttempts {
		code, err := NewCode()
		if err != nil {
			return Share{}, err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO share_codes (code, path, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
			code, path, now, expires)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == uniqueViolation {
			s.log.Debug("Share code collision", slog.String("code", code))
			continue
		}
		if err != nil {
			return Share{}, fmt.Errorf("Generate: failed to insert share code: %w", err)
		}
		s.log.Info("Share code generated", slog.String("code", code), slog.String("path", path))
		return Share{Code: code, Path: path, CreatedAt: now, ExpiresAt: expiresAt}, nil
	}
	return Share{}, fmt.Errorf("Generate: %w", ErrNoFreeCode)
}

// Resolve returns the share of code.
func (s *PGStore) Resolve(ctx context.Context, code string) (Share, error) {
	c, err := NormalizeCode(code)
	if err != nil {
		return Share{}, err
	}
	share := Share{Code: c}
	var expires sql.NullTime
	err = s.db.QueryRowContext(ctx,
		`SELECT path, created_at, expires_at FROM share_codes WHERE code = $1`, c,
	).Scan(&share.Path, &share.CreatedAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Share{}, fmt.Errorf("%w: %s", ErrCodeNotFound, c)
	}
	if err != nil {
		return Share{}, fmt.Errorf("Resolve: failed to query share code: %w", err)
	}
	if expires.Valid {
		t := expires.Time
		share.ExpiresAt = &t
	}
	if share.Expired(s.now()) {
		return share, fmt.Errorf("%w: %s", ErrCodeExpired, c)
	}
	return share, nil
}

// Revoke deletes code.
func (s *PGStore) Revoke(ctx context.Context, code string) error {
	c, err := NormalizeCode(code)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM share_codes WHERE code = $1`, c); err != nil {
		return fmt.Errorf("Revoke: failed to delete share code: %w", err)
	}
	return nil
}

// PurgeExpired deletes every expired code.
func (s *PGStore) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM share_codes WHERE expires_at IS NOT NULL AND expires_at < $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("PurgeExpired: failed to delete share codes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("PurgeExpired: %w", err)
	}
	return int(n), nil
}
