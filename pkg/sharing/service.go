package sharing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sgaunet/s3box/pkg/pathmap"
	"github.com/sgaunet/s3box/pkg/s3svc"
)

// Folders tells whether a folder holds any key. *s3svc.Service implements it.
type Folders interface {
	PrefixExists(ctx context.Context, prefix string) (bool, error)
}

// Service applies the ownership rules of one user on top of a CodeProvider.
type Service struct {
	codes     CodeProvider
	folders   Folders
	namespace string
	log       *slog.Logger
}

// NewService creates a sharing service for namespace.
func NewService(codes CodeProvider, folders Folders, namespace string) *Service {
	return &Service{
		codes:     codes,
		folders:   folders,
		namespace: namespace,
		log:       slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets the logger
func (s *Service) SetLogger(log *slog.Logger) {
	s.log = log
}

// Share creates a code for a folder of the user. ttl 0 means no expiry.
// The folder must hold at least one key.
func (s *Service) Share(ctx context.Context, folder string, ttl time.Duration) (Share, error) {
	if !strings.HasSuffix(folder, pathmap.Separator) {
		folder += pathmap.Separator
	}
	if !pathmap.InNamespace(s.namespace, folder) {
		return Share{}, fmt.Errorf("Share: %w: %q", ErrNotOwner, folder)
	}
	exists, err := s.folders.PrefixExists(ctx, folder)
	if err != nil {
		return Share{}, fmt.Errorf("Share: %w", err)
	}
	if !exists {
		return Share{}, fmt.Errorf("Share: %w: no folder %q", s3svc.ErrNotFound, folder)
	}
	share, err := s.codes.Generate(ctx, folder, ttl)
	if err != nil {
		return Share{}, fmt.Errorf("Share: %w", err)
	}
	return share, nil
}

// Redeem returns the folder behind code.
func (s *Service) Redeem(ctx context.Context, code string) (Share, error) {
	share, err := s.codes.Resolve(ctx, code)
	if err != nil {
		return Share{}, fmt.Errorf("Redeem: %w", err)
	}
	s.log.Info("Share code redeemed", slog.String("code", share.Code), slog.String("path", share.Path))
	return share, nil
}

// Revoke removes a code of the user. Expired codes can be revoked too.
func (s *Service) Revoke(ctx context.Context, code string) (Share, error) {
	share, err := s.codes.Resolve(ctx, code)
	if err != nil && !errors.Is(err, ErrCodeExpired) {
		return Share{}, fmt.Errorf("Revoke: %w", err)
	}
	if !pathmap.InNamespace(s.namespace, share.Path) {
		return Share{}, fmt.Errorf("Revoke: %w: %s", ErrNotOwner, share.Code)
	}
	if err := s.codes.Revoke(ctx, share.Code); err != nil {
		return Share{}, fmt.Errorf("Revoke: %w", err)
	}
	s.log.Info("Share code revoked", slog.String("code", share.Code))
	return share, nil
}

// Purge removes expired codes.
func (s *Service) Purge(ctx context.Context) (int, error) {
	return s.codes.PurgeExpired(ctx)
}
