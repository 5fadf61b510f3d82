package sharing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sgaunet/s3box/pkg/pathmap"
	"github.com/sgaunet/s3box/pkg/s3svc"
)

// CodesKey is the object holding every share code of the bucket.
const CodesKey = pathmap.ReservedNamespace + "/codes.json"

// timestamps written by older clients carry no zone and are UTC
const naiveLayout = "2006-01-02T15:04:05.999999999"

// ObjectStore reads and writes whole objects. *s3svc.Service implements it.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// S3Store keeps the codes in one JSON document of the bucket:
//
//	{"ABC123": {"path": "alice/docs/", "created_at": "...", "expires_at": "..."}}
//
// Updates are read-modify-write and not atomic: two clients generating codes
// at the same time may lose one of them.
type S3Store struct {
	objects ObjectStore
	now     func() time.Time
	log     *slog.Logger
}

type codeEntry struct {
	Path      string `json:"path"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// NewS3Store creates a store backed by the codes document.
func NewS3Store(objects ObjectStore) *S3Store {
	return &S3Store{
		objects: objects,
		now:     time.Now,
		log:     slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets the logger
func (s *S3Store) SetLogger(log *slog.Logger) {
	s.log = log
}

// SetClock replaces the time source.
func (s *S3Store) SetClock(now func() time.Time) {
	s.now = now
}

// Generate stores a new code for path.
func (s *S3Store) Generate(ctx context.Context, path string, ttl time.Duration) (Share, error) {
	now := s.now().UTC()
	expiresAt, err := expiry(now, ttl)
	if err != nil {
		return Share{}, err
	}
	codes, err := s.read(ctx)
	if err != nil {
		return Share{}, err
	}
	code, err := uniqueCode(func(c string) bool { _, ok := codes[c]; return ok })
	if err != nil {
		return Share{}, fmt.Errorf("Generate: %w", err)
	}

	entry := codeEntry{Path: path, CreatedAt: now.Format(time.RFC3339Nano)}
	if expiresAt != nil {
		entry.ExpiresAt = expiresAt.Format(time.RFC3339Nano)
	}
	codes[code] = entry
	if err := s.write(ctx, codes); err != nil {
		return Share{}, err
	}
	s.log.Info("Share code generated", slog.String("code", code), slog.String("path", path))
	return Share{Code: code, Path: path, CreatedAt: now, ExpiresAt: expiresAt}, nil
}

// Resolve returns the share of code.
func (s *S3Store) Resolve(ctx context.Context, code string) (Share, error) {
	c, err := NormalizeCode(code)
	if err != nil {
		return Share{}, err
	}
	codes, err := s.read(ctx)
	if err != nil {
		return Share{}, err
	}
	entry, ok := codes[c]
	if !ok {
		return Share{}, fmt.Errorf("%w: %s", ErrCodeNotFound, c)
	}
	share, err := entry.share(c)
	if err != nil {
		return Share{}, err
	}
	if share.Expired(s.now()) {
		return share, fmt.Errorf("%w: %s", ErrCodeExpired, c)
	}
	return share, nil
}

// Revoke removes code.
func (s *S3Store) Revoke(ctx context.Context, code string) error {
	c, err := NormalizeCode(code)
	if err != nil {
		return err
	}
	codes, err := s.read(ctx)
	if err != nil {
		return err
	}
	if _, ok := codes[c]; !ok {
		return nil
	}
	delete(codes, c)
	return s.write(ctx, codes)
}

// PurgeExpired removes every expired code and returns how many were removed.
func (s *S3Store) PurgeExpired(ctx context.Context) (int, error) {
	codes, err := s.read(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	purged := 0
	for c, entry := range codes {
		share, err := entry.share(c)
		if err != nil {
			s.log.Warn("Unreadable share code", slog.String("code", c), slog.String("error", err.Error()))
			continue
		}
		if share.Expired(now) {
			delete(codes, c)
			purged++
		}
	}
	if purged == 0 {
		return 0, nil
	}
	if err := s.write(ctx, codes); err != nil {
		return 0, err
	}
	return purged, nil
}

func (s *S3Store) read(ctx context.Context) (map[string]codeEntry, error) {
	data, err := s.objects.GetObject(ctx, CodesKey)
	if errors.Is(err, s3svc.ErrNotFound) {
		return map[string]codeEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading share codes: %w", err)
	}
	codes := map[string]codeEntry{}
	if err := json.Unmarshal(data, &codes); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", CodesKey, err)
	}
	return codes, nil
}

func (s *S3Store) write(ctx context.Context, codes map[string]codeEntry) error {
	data, err := json.MarshalIndent(codes, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding share codes: %w", err)
	}
	if err := s.objects.PutObject(ctx, CodesKey, data, "application/json"); err != nil {
		return fmt.Errorf("writing share codes: %w", err)
	}
	return nil
}

func (e codeEntry) share(code string) (Share, error) {
	share := Share{Code: code, Path: e.Path}
	if e.CreatedAt != "" {
		t, err := parseTimestamp(e.CreatedAt)
		if err != nil {
			return Share{}, err
		}
		share.CreatedAt = t
	}
	if e.ExpiresAt != "" {
		t, err := parseTimestamp(e.ExpiresAt)
		if err != nil {
			return Share{}, err
		}
		share.ExpiresAt = &t
	}
	return share, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid share timestamp %q: %w", s, err)
	}
	return t, nil
}
