// Package transfer turns a user request into an ordered plan of single
// object transfers, runs it against the remote gateway and aggregates the
// per-item outcomes.
//
// Items run one at a time in discovery order. A failing item never stops the
// plan: the engine records the failure and moves on, so a directory transfer
// with one bad file still transfers all the others and reports which one
// failed and why.
package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sgaunet/s3box/pkg/dto"
	"github.com/sgaunet/s3box/pkg/pathmap"
	"github.com/sgaunet/s3box/pkg/s3svc"
	"github.com/sgaunet/s3box/pkg/scanner"
)

// Gateway is the remote store as seen by the engine. *s3svc.Service implements it.
type Gateway interface {
	Exists(ctx context.Context, key string) (bool, error)
	Download(ctx context.Context, key string, w io.Writer) (int64, error)
	UploadObject(ctx context.Context, key string, body io.Reader, contentType string, size int64) error
	DeleteObject(ctx context.Context, key string) error
	ListFolder(ctx context.Context, prefix string) ([]dto.S3Object, error)
	Paginate(prefix string) s3svc.Pager
}

var _ Gateway = (*s3svc.Service)(nil)

// Engine executes requests for one namespace.
type Engine struct {
	gw        Gateway
	scanner   *scanner.Service
	namespace string
	policy    ConflictPolicy
	observer  Observer
	log       *slog.Logger
}

// NewEngine creates an engine for namespace. The namespace is sanitized.
func NewEngine(gw Gateway, namespace string, policy ConflictPolicy) (*Engine, error) {
	ns, err := pathmap.SanitizeNamespace(namespace)
	if err != nil {
		return nil, fmt.Errorf("NewEngine: %w", err)
	}
	if policy == "" {
		policy = PolicyOverwrite
	}
	if _, err := ParseConflictPolicy(string(policy)); err != nil {
		return nil, fmt.Errorf("NewEngine: %w", err)
	}
	return &Engine{
		gw:        gw,
		scanner:   scanner.NewService(gw),
		namespace: ns,
		policy:    policy,
		log:       slog.New(slog.DiscardHandler),
	}, nil
}

// SetLogger sets the logger
func (e *Engine) SetLogger(log *slog.Logger) {
	e.log = log
	e.scanner.SetLogger(log)
}

// SetObserver registers an observer notified of each item. nil removes it.
func (e *Engine) SetObserver(o Observer) {
	e.observer = o
}

// Namespace returns the sanitized namespace of the engine.
func (e *Engine) Namespace() string {
	return e.namespace
}

// Policy returns the conflict policy of the engine.
func (e *Engine) Policy() ConflictPolicy {
	return e.policy
}

// Execute plans and runs req.
//
// The returned error is only set when nothing could be done: invalid
// request, delete outside of the namespace, unreadable local root or an
// incomplete remote listing. Item failures are reported in the Result.
func (e *Engine) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.Kind == KindList {
		return e.list(ctx, req)
	}
	plan, err := e.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, plan), nil
}

// UploadFile uploads one file to {namespace}/{basename}.
func (e *Engine) UploadFile(ctx context.Context, localPath string) (*Result, error) {
	return e.Execute(ctx, Request{Kind: KindUploadFile, LocalPath: localPath})
}

// UploadDir uploads every regular file below localDir to {namespace}/{dirname}/...
func (e *Engine) UploadDir(ctx context.Context, localDir string) (*Result, error) {
	return e.Execute(ctx, Request{Kind: KindUploadDir, LocalPath: localDir})
}

// DownloadFile downloads key into destDir.
func (e *Engine) DownloadFile(ctx context.Context, key, destDir string) (*Result, error) {
	return e.Execute(ctx, Request{Kind: KindDownloadFile, RemotePath: key, LocalPath: destDir})
}

// DownloadDir downloads every key below prefix into destDir/{folder}/...
func (e *Engine) DownloadDir(ctx context.Context, prefix, destDir string) (*Result, error) {
	return e.Execute(ctx, Request{Kind: KindDownloadDir, RemotePath: prefix, LocalPath: destDir})
}

// List returns one level of the folder prefix, or of the namespace root when prefix is empty.
func (e *Engine) List(ctx context.Context, prefix string) (*Result, error) {
	return e.Execute(ctx, Request{Kind: KindList, RemotePath: prefix})
}

// Delete deletes key, or every key below it when key ends with "/".
func (e *Engine) Delete(ctx context.Context, key string) (*Result, error) {
	return e.Execute(ctx, Request{Kind: KindDelete, RemotePath: key})
}

func (e *Engine) list(ctx context.Context, req Request) (*Result, error) {
	prefix := req.RemotePath
	if prefix == "" {
		prefix = pathmap.Prefix(e.namespace)
	}
	prefix, err := folderKey(prefix)
	if err != nil {
		return nil, err
	}
	entries, err := e.gw.ListFolder(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return &Result{Kind: KindList, Outcomes: []Outcome{}, Entries: entries}, nil
}
