package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sgaunet/s3box/pkg/pathmap"
)

// Plan expands req into its ordered items without transferring anything.
// Listing the remote store is the only network access.
func (e *Engine) Plan(ctx context.Context, req Request) (*Plan, error) {
	var (
		plan *Plan
		err  error
	)
	switch req.Kind {
	case KindUploadFile:
		plan, err = e.planUploadFile(req)
	case KindUploadDir:
		plan, err = e.planUploadDir(ctx, req)
	case KindDownloadFile:
		plan, err = e.planDownloadFile(req)
	case KindDownloadDir:
		plan, err = e.planDownloadDir(ctx, req)
	case KindDelete:
		plan, err = e.planDelete(ctx, req)
	default:
		return nil, fmt.Errorf("Plan: %w: unsupported kind %q", ErrInvalidRequest, req.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("Plan %s: %w", req.Kind, err)
	}
	e.log.Info("Transfer planned",
		slog.String("kind", string(req.Kind)),
		slog.String("namespace", e.namespace),
		slog.Int("items", len(plan.Items)),
		slog.Int("problems", len(plan.Problems)))
	return plan, nil
}

func (e *Engine) planUploadFile(req Request) (*Plan, error) {
	path, info, err := statLocal(req.LocalPath)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrInvalidRequest, path)
	}
	key, err := pathmap.ToRemoteKey(e.namespace, filepath.Dir(path), path)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Request: req,
		Items: []Item{{
			Direction: DirectionUpload,
			LocalPath: path,
			RemoteKey: key,
			Size:      info.Size(),
		}},
	}, nil
}

// planUploadDir maps the tree relative to the parent of the directory, so
// that uploading docs/ produces keys {namespace}/docs/...
func (e *Engine) planUploadDir(ctx context.Context, req Request) (*Plan, error) {
	root, info, err := statLocal(req.LocalPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRequest, root)
	}
	scan, err := e.scanner.ScanLocal(ctx, root)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Request: req, Items: make([]Item, 0, len(scan.Files))}
	for _, p := range scan.Problems {
		plan.Problems = append(plan.Problems, Outcome{
			Item:  Item{Direction: DirectionUpload, LocalPath: p.Path},
			State: StateFailed,
			Err:   p.Err,
		})
	}
	base := filepath.Dir(root)
	for _, f := range scan.Files {
		key, err := pathmap.ToRemoteKey(e.namespace, base, f.Path)
		if err != nil {
			plan.Problems = append(plan.Problems, Outcome{
				Item:  Item{Direction: DirectionUpload, LocalPath: f.Path, Size: f.Size},
				State: StateFailed,
				Err:   err,
			})
			continue
		}
		plan.Items = append(plan.Items, Item{
			Direction: DirectionUpload,
			LocalPath: f.Path,
			RemoteKey: key,
			Size:      f.Size,
		})
	}
	return plan, nil
}

func (e *Engine) planDownloadFile(req Request) (*Plan, error) {
	key := req.RemotePath
	if err := validKey(key); err != nil {
		return nil, err
	}
	if strings.HasSuffix(key, pathmap.Separator) {
		return nil, fmt.Errorf("%w: %q is a folder", ErrInvalidRequest, key)
	}
	dest, err := destination(req.LocalPath)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Request: req,
		Items: []Item{{
			Direction: DirectionDownload,
			LocalPath: filepath.Join(dest, pathmap.BaseName(key)),
			RemoteKey: key,
		}},
	}, nil
}

// planDownloadDir maps every key relative to the parent of the prefix:
// alice/docs/a.txt downloaded from alice/docs/ lands in {dest}/docs/a.txt.
func (e *Engine) planDownloadDir(ctx context.Context, req Request) (*Plan, error) {
	prefix, err := folderKey(req.RemotePath)
	if err != nil {
		return nil, err
	}
	dest, err := destination(req.LocalPath)
	if err != nil {
		return nil, err
	}
	objects, err := e.scanner.ScanRemote(ctx, prefix)
	if err != nil {
		return nil, err
	}

	folder := strings.TrimSuffix(prefix, pathmap.Separator)
	root := filepath.Join(dest, pathmap.BaseName(prefix))
	plan := &Plan{Request: req, Items: make([]Item, 0, len(objects))}
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, pathmap.Separator) {
			continue
		}
		local, err := pathmap.ToLocalPath(folder, obj.Key, root)
		if err != nil {
			plan.Problems = append(plan.Problems, Outcome{
				Item:  Item{Direction: DirectionDownload, RemoteKey: obj.Key, Size: obj.Size},
				State: StateFailed,
				Err:   err,
			})
			continue
		}
		plan.Items = append(plan.Items, Item{
			Direction: DirectionDownload,
			LocalPath: local,
			RemoteKey: obj.Key,
			Size:      obj.Size,
		})
	}
	return plan, nil
}

// planDelete refuses any key outside of the namespace before talking to the
// remote store. Keys returned by a prefix listing are checked again.
func (e *Engine) planDelete(ctx context.Context, req Request) (*Plan, error) {
	key := req.RemotePath
	if !strings.HasSuffix(key, pathmap.Separator) {
		if !pathmap.InNamespace(e.namespace, key) {
			return nil, e.scopeError(key)
		}
		return &Plan{
			Request: req,
			Items:   []Item{{Direction: DirectionDelete, RemoteKey: key}},
		}, nil
	}

	if key != pathmap.Prefix(e.namespace) && !pathmap.InNamespace(e.namespace, key) {
		return nil, e.scopeError(key)
	}
	objects, err := e.scanner.ScanRemote(ctx, key)
	if err != nil {
		return nil, err
	}
	plan := &Plan{Request: req, Items: make([]Item, 0, len(objects))}
	for _, obj := range objects {
		if !pathmap.InNamespace(e.namespace, obj.Key) {
			plan.Problems = append(plan.Problems, Outcome{
				Item:  Item{Direction: DirectionDelete, RemoteKey: obj.Key},
				State: StateFailed,
				Err:   e.scopeError(obj.Key),
			})
			continue
		}
		plan.Items = append(plan.Items, Item{
			Direction: DirectionDelete,
			RemoteKey: obj.Key,
			Size:      obj.Size,
		})
	}
	return plan, nil
}

func (e *Engine) scopeError(key string) error {
	e.log.Warn("Refusing delete outside of namespace",
		slog.String("namespace", e.namespace),
		slog.String("key", key))
	return fmt.Errorf("%w: %q is not under %q", ErrPermissionScope, key, pathmap.Prefix(e.namespace))
}

// statLocal returns the absolute cleaned path and its metadata.
func statLocal(path string) (string, os.FileInfo, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil, fmt.Errorf("%w: local path is required", ErrInvalidRequest)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", pathmap.ErrInvalidPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", pathmap.ErrInvalidPath, err)
	}
	return abs, info, nil
}

// destination returns the absolute download directory, "." by default.
func destination(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", pathmap.ErrInvalidPath, err)
	}
	return abs, nil
}

// validKey rejects keys that could not be mapped safely to a local file.
func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, pathmap.Separator) {
		return fmt.Errorf("%w: %q", pathmap.ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(strings.TrimSuffix(key, pathmap.Separator), pathmap.Separator) {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", pathmap.ErrInvalidKey, key)
		}
	}
	return nil
}

// folderKey validates a folder key and adds its trailing separator.
func folderKey(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	if !strings.HasSuffix(key, pathmap.Separator) {
		key += pathmap.Separator
	}
	return key, nil
}
