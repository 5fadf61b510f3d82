// Package session builds the services of one user from the configuration:
// the S3 gateway, the transfer engine, share codes and the optional
// transfer history.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sgaunet/s3box/pkg/config"
	"github.com/sgaunet/s3box/pkg/dbinit"
	"github.com/sgaunet/s3box/pkg/dbsvc"
	"github.com/sgaunet/s3box/pkg/health"
	"github.com/sgaunet/s3box/pkg/pathmap"
	"github.com/sgaunet/s3box/pkg/s3svc"
	"github.com/sgaunet/s3box/pkg/sharing"
	"github.com/sgaunet/s3box/pkg/transfer"
)

// ErrNoHistory is returned by History when no database is configured.
var ErrNoHistory = errors.New("transfer history requires share.databaseurl")

// Session groups the services of one user.
type Session struct {
	cfg       config.Config
	namespace string
	s3        *s3svc.Service
	engine    *transfer.Engine
	sharing   *sharing.Service
	history   *dbsvc.Service
	db        *sql.DB
	log       *slog.Logger
}

// Open validates cfg, connects to the bucket (creating it when needed) and to
// the database when one is configured.
func Open(ctx context.Context, cfg config.Config, username string, log *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := s3svc.NewS3Client(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.Share.DatabaseURL != "" {
		db, err = dbinit.InitializeDatabase(ctx, cfg.Share.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	s, err := New(cfg, username, client, db, log)
	if err != nil {
		closeDB(db, log)
		return nil, err
	}
	if err := s.Prepare(ctx); err != nil {
		closeDB(db, log)
		return nil, err
	}
	return s, nil
}

// New assembles a session on an existing S3 client and optional database.
// No network call is made.
func New(cfg config.Config, username string, client s3svc.S3API, db *sql.DB, log *slog.Logger) (*Session, error) {
	namespace, err := pathmap.SanitizeNamespace(username)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	policy, err := transfer.ParseConflictPolicy(cfg.ConflictPolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	svc := s3svc.NewS3Svc(cfg, client)
	svc.SetLogger(log)

	engine, err := transfer.NewEngine(svc, namespace, policy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	engine.SetLogger(log)

	var codes sharing.CodeProvider
	switch cfg.ShareBackend() {
	case config.ShareBackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("%w: share backend %q requires a database", config.ErrConfiguration, config.ShareBackendPostgres)
		}
		store := sharing.NewPGStore(db)
		store.SetLogger(log)
		codes = store
	default:
		store := sharing.NewS3Store(svc)
		store.SetLogger(log)
		codes = store
	}
	shares := sharing.NewService(codes, svc, namespace)
	shares.SetLogger(log)

	s := &Session{
		cfg:       cfg,
		namespace: namespace,
		s3:        svc,
		engine:    engine,
		sharing:   shares,
		db:        db,
		log:       log,
	}
	if db != nil {
		s.history = dbsvc.NewService(db)
		s.history.SetLogger(log)
	}
	return s, nil
}

// Prepare checks the credentials and creates the bucket when it does not exist.
func (s *Session) Prepare(ctx context.Context) error {
	if err := s.s3.VerifyConnection(ctx); err != nil {
		return fmt.Errorf("cannot connect to bucket %q: %w", s.s3.BucketName(), err)
	}
	if err := s.s3.EnsureBucketExists(ctx); err != nil {
		return fmt.Errorf("cannot use bucket %q: %w", s.s3.BucketName(), err)
	}
	return nil
}

// Namespace returns the sanitized namespace of the user.
func (s *Session) Namespace() string { return s.namespace }

// Config returns the configuration the session was built from.
func (s *Session) Config() config.Config { return s.cfg }

// Engine returns the transfer engine.
func (s *Session) Engine() *transfer.Engine { return s.engine }

// S3 returns the gateway.
func (s *Session) S3() *s3svc.Service { return s.s3 }

// Sharing returns the share code service.
func (s *Session) Sharing() *sharing.Service { return s.sharing }

// HasHistory reports whether transfers are recorded.
func (s *Session) HasHistory() bool { return s.history != nil }

// Execute runs req and records the outcomes when a history is configured.
// Recording failures are logged and do not change the result.
func (s *Session) Execute(ctx context.Context, req transfer.Request) (*transfer.Result, error) {
	res, err := s.engine.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	s.record(ctx, res)
	return res, nil
}

// Redeem resolves code and downloads the shared folder into destDir.
func (s *Session) Redeem(ctx context.Context, code, destDir string) (sharing.Share, *transfer.Result, error) {
	share, err := s.sharing.Redeem(ctx, code)
	if err != nil {
		return sharing.Share{}, nil, err
	}
	res, err := s.Execute(ctx, transfer.Request{
		Kind:       transfer.KindDownloadDir,
		LocalPath:  destDir,
		RemotePath: share.Path,
	})
	if err != nil {
		return share, nil, err
	}
	return share, res, nil
}

// Resolve turns a path relative to the namespace into a key, and tells
// whether it names a folder. Paths ending with "/" are folders. Otherwise the
// path is a folder only when no object has that key and at least one key
// lives below it; a path matching nothing resolves as a file so that a
// download fails and a delete is skipped as not found.
func (s *Session) Resolve(ctx context.Context, rel string) (string, bool, error) {
	key, err := pathmap.JoinKey(s.namespace, rel)
	if err != nil {
		return "", false, err
	}
	if strings.HasSuffix(key, pathmap.Separator) {
		return key, true, nil
	}
	exists, err := s.s3.Exists(ctx, key)
	if err != nil {
		return "", false, err
	}
	if exists {
		return key, false, nil
	}
	folder := key + pathmap.Separator
	hasKeys, err := s.s3.PrefixExists(ctx, folder)
	if err != nil {
		return "", false, err
	}
	if hasKeys {
		return folder, true, nil
	}
	return key, false, nil
}

// History returns the latest transfers of the user.
func (s *Session) History(ctx context.Context, limit int) ([]dbsvc.Entry, error) {
	if s.history == nil {
		return nil, ErrNoHistory
	}
	return s.history.RecentTransfers(ctx, s.namespace, limit)
}

// Monitors returns one health monitor per remote dependency.
func (s *Session) Monitors() []*health.Monitor {
	monitors := []*health.Monitor{health.NewMonitor("bucket", s.s3, s.log)}
	if s.history != nil {
		monitors = append(monitors, health.NewMonitor("database", s.history, s.log))
	}
	return monitors
}

// Close releases the database connection.
func (s *Session) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func (s *Session) record(ctx context.Context, res *transfer.Result) {
	if s.history == nil || len(res.Outcomes) == 0 {
		return
	}
	// recorded even when ctx was cancelled mid transfer
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := s.history.RecordResult(recCtx, s.namespace, res); err != nil {
		s.log.Warn("Failed to record transfer history", slog.String("error", err.Error()))
	}
}

func closeDB(db *sql.DB, log *slog.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.Error("Failed to close database connection", slog.String("error", err.Error()))
	}
}
