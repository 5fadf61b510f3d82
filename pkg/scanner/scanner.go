// Package scanner discovers the leaf objects of a transfer: regular files
// below a local directory, or every key below a remote prefix.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sgaunet/s3box/pkg/dto"
	"github.com/sgaunet/s3box/pkg/s3svc"
)

// ErrNotDirectory is returned when the root of a local scan is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Lister gives access to a paginated remote listing.
type Lister interface {
	Paginate(prefix string) s3svc.Pager
}

// LocalFile is a regular file found by ScanLocal.
type LocalFile struct {
	Path string
	Size int64
}

// Problem is a path that could not be scanned. It does not stop the scan.
type Problem struct {
	Path string
	Err  error
}

// LocalScan is the result of ScanLocal.
type LocalScan struct {
	Files    []LocalFile
	Problems []Problem
	// Ignored counts symlinks and special files.
	Ignored int
}

// Service handles local and remote scanning operations
type Service struct {
	lister Lister
	log    *slog.Logger
}

// NewService creates a new scanner service
func NewService(lister Lister) *Service {
	return &Service{
		lister: lister,
		log:    slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets the logger for the scanner
func (s *Service) SetLogger(log *slog.Logger) {
	s.log = log
}

// ScanLocal walks root depth first in lexical order and returns its regular files.
// A symbolic link given as root is resolved once; links below root are never
// followed and empty directories yield nothing. Returned paths stay under
// root as given. Unreadable entries below root are reported as problems; only
// a failure on root itself or a cancelled context aborts the scan.
func (s *Service) ScanLocal(ctx context.Context, root string) (LocalScan, error) {
	var result LocalScan

	walkRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return result, fmt.Errorf("ScanLocal: %w", err)
	}
	info, err := os.Stat(walkRoot)
	if err != nil {
		return result, fmt.Errorf("ScanLocal: %w", err)
	}
	if !info.IsDir() {
		return result, fmt.Errorf("ScanLocal: %s: %w", root, ErrNotDirectory)
	}
	if walkRoot != root {
		s.log.Debug("Resolved scan root", slog.String("root", root), slog.String("target", walkRoot))
	}
	// under maps a walked path back below root.
	under := func(path string) string {
		rel, err := filepath.Rel(walkRoot, path)
		if err != nil {
			return path
		}
		return filepath.Join(root, rel)
	}

	s.log.Info("Starting local scan", slog.String("root", root))
	err = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == walkRoot {
				return err
			}
			path = under(path)
			s.log.Warn("Cannot scan path", slog.String("path", path), slog.String("error", err.Error()))
			result.Problems = append(result.Problems, Problem{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case d.IsDir():
			return nil
		case !d.Type().IsRegular():
			s.log.Debug("Ignoring non regular file", slog.String("path", under(path)))
			result.Ignored++
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			result.Problems = append(result.Problems, Problem{Path: under(path), Err: err})
			return nil
		}
		result.Files = append(result.Files, LocalFile{Path: under(path), Size: fi.Size()})
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("ScanLocal: %w", err)
	}

	s.log.Info("Local scan completed",
		slog.String("root", root),
		slog.Int("files", len(result.Files)),
		slog.Int("problems", len(result.Problems)),
		slog.Int("ignored", result.Ignored))
	return result, nil
}

// ScanRemote exhausts the listing of prefix. A listing is only complete when
// every page was read, so any page failure fails the scan.
func (s *Service) ScanRemote(ctx context.Context, prefix string) ([]dto.S3Object, error) {
	s.log.Info("Starting remote scan", slog.String("prefix", prefix))

	objects := []dto.S3Object{}
	pages := 0
	pager := s.lister.Paginate(prefix)
	for pager.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ScanRemote: %w", err)
		}
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ScanRemote: failed to list %s: %w", prefix, err)
		}
		pages++
		objects = append(objects, page...)
	}

	s.log.Info("Remote scan completed",
		slog.String("prefix", prefix),
		slog.Int("pages", pages),
		slog.Int("objects", len(objects)))
	return objects, nil
}
