package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sgaunet/s3box/pkg/s3svc"
)

const dirMode = 0o755

// Run executes the items of plan sequentially, one attempt each.
// Planning problems come first in the result as failed outcomes. Once ctx is
// cancelled the remaining items are skipped with ErrCancelled. The item in
// flight at that moment is not skipped: it fails with the error of its
// interrupted call, usually context.Canceled.
func (e *Engine) Run(ctx context.Context, plan *Plan) *Result {
	result := &Result{Kind: plan.Request.Kind, Outcomes: make([]Outcome, 0, len(plan.Problems)+len(plan.Items))}
	for _, p := range plan.Problems {
		result.add(p)
	}

	start := time.Now()
	total := len(plan.Items)
	for i, item := range plan.Items {
		if err := ctx.Err(); err != nil {
			e.log.Warn("Transfer cancelled",
				slog.Int("done", i),
				slog.Int("remaining", total-i))
			for _, rest := range plan.Items[i:] {
				result.add(Outcome{Item: rest, State: StateSkipped, Err: fmt.Errorf("%w: %w", ErrCancelled, err)})
			}
			break
		}

		if e.observer != nil {
			e.observer.ItemStarted(item, i, total)
		}
		outcome := e.runItem(ctx, item)
		result.add(outcome)
		if e.observer != nil {
			e.observer.ItemFinished(result.Outcomes[len(result.Outcomes)-1], i, total)
		}
	}

	e.log.Info("Transfer completed",
		slog.String("kind", string(plan.Request.Kind)),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
		slog.Int64("bytes", result.Bytes),
		slog.Duration("elapsed", time.Since(start)))
	return result
}

func (e *Engine) runItem(ctx context.Context, item Item) Outcome {
	e.log.Debug("Item in flight",
		slog.String("direction", string(item.Direction)),
		slog.String("key", item.RemoteKey),
		slog.String("path", item.LocalPath))

	var (
		o   Outcome
		err error
	)
	switch item.Direction {
	case DirectionUpload:
		o, err = e.upload(ctx, item)
	case DirectionDownload:
		o, err = e.download(ctx, item)
	case DirectionDelete:
		o, err = e.delete(ctx, item)
	default:
		err = fmt.Errorf("%w: unknown direction %q", ErrInvalidRequest, item.Direction)
	}
	o.Item = item
	if err != nil {
		e.log.Warn("Item failed",
			slog.String("key", item.RemoteKey),
			slog.String("path", item.LocalPath),
			slog.String("error", err.Error()))
		o.State = StateFailed
		o.Err = err
		o.Bytes = 0
	}
	return o
}

func (e *Engine) upload(ctx context.Context, item Item) (Outcome, error) {
	if e.policy == PolicySkipIfExists {
		exists, err := e.gw.Exists(ctx, item.RemoteKey)
		if err != nil {
			return Outcome{}, err
		}
		if exists {
			return Outcome{State: StateSkipped, Err: fmt.Errorf("%w: %s", ErrExists, item.RemoteKey)}, nil
		}
	}

	f, err := os.Open(item.LocalPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("upload: %w", err)
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return Outcome{}, fmt.Errorf("upload: %w", err)
	}
	if err := e.gw.UploadObject(ctx, item.RemoteKey, f, contentType(item.LocalPath), info.Size()); err != nil {
		return Outcome{}, err
	}
	return Outcome{State: StateSucceeded, Bytes: info.Size()}, nil
}

// download writes to a temporary file next to the destination and renames
// it once complete, so a failed item never leaves a truncated file behind.
func (e *Engine) download(ctx context.Context, item Item) (Outcome, error) {
	if e.policy == PolicySkipIfExists {
		if _, err := os.Lstat(item.LocalPath); err == nil {
			return Outcome{State: StateSkipped, Err: fmt.Errorf("%w: %s", ErrExists, item.LocalPath)}, nil
		}
	}

	dir := filepath.Dir(item.LocalPath)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return Outcome{}, fmt.Errorf("download: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(item.LocalPath)+".*.part")
	if err != nil {
		return Outcome{}, fmt.Errorf("download: %w", err)
	}
	n, err := e.gw.Download(ctx, item.RemoteKey, tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("download: %w", closeErr)
	}
	if err == nil {
		err = os.Rename(tmp.Name(), item.LocalPath)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return Outcome{}, err
	}
	return Outcome{State: StateSucceeded, Bytes: n}, nil
}

// delete reports a missing key as skipped. S3 does not fail deletes of
// missing keys, so existence is checked first.
func (e *Engine) delete(ctx context.Context, item Item) (Outcome, error) {
	exists, err := e.gw.Exists(ctx, item.RemoteKey)
	if err != nil {
		return Outcome{}, err
	}
	if !exists {
		return Outcome{State: StateSkipped, Err: fmt.Errorf("delete %s: %w", item.RemoteKey, s3svc.ErrNotFound)}, nil
	}
	if err := e.gw.DeleteObject(ctx, item.RemoteKey); err != nil {
		if errors.Is(err, s3svc.ErrNotFound) {
			return Outcome{State: StateSkipped, Err: err}, nil
		}
		return Outcome{}, err
	}
	return Outcome{State: StateSucceeded}, nil
}
