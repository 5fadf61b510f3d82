package transfer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sgaunet/s3box/pkg/dto"
)

var (
	// ErrPermissionScope is returned when a delete targets a key outside the caller's namespace.
	ErrPermissionScope = errors.New("key outside of namespace")
	// ErrInvalidRequest is returned for a malformed request.
	ErrInvalidRequest = errors.New("invalid transfer request")
	// ErrCancelled is the reason of items skipped after the context was cancelled.
	ErrCancelled = errors.New("transfer cancelled")
	// ErrExists is the reason of items skipped by the skip-if-exists policy.
	ErrExists = errors.New("destination already exists")
)

// Kind is the type of a request.
type Kind string

// Request kinds.
const (
	KindUploadFile   Kind = "upload-file"
	KindUploadDir    Kind = "upload-dir"
	KindDownloadFile Kind = "download-file"
	KindDownloadDir  Kind = "download-dir"
	KindList         Kind = "list"
	KindDelete       Kind = "delete"
)

// Direction of an item.
type Direction string

// Item directions.
const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
	DirectionDelete   Direction = "delete"
)

// State of an item.
type State string

// Item states. An item is Planned, then InFlight, then ends in one of the
// three final states.
const (
	StatePlanned   State = "planned"
	StateInFlight  State = "in-flight"
	StateSucceeded State = "succeeded"
	StateSkipped   State = "skipped"
	StateFailed    State = "failed"
)

// ConflictPolicy decides what happens when the destination already exists.
type ConflictPolicy string

// Conflict policies.
const (
	PolicyOverwrite    ConflictPolicy = "overwrite"
	PolicySkipIfExists ConflictPolicy = "skip-if-exists"
)

// ParseConflictPolicy parses a policy name. The empty string means overwrite.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicyOverwrite:
		return PolicyOverwrite, nil
	case PolicySkipIfExists:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown conflict policy %q", ErrInvalidRequest, s)
	}
}

// Request is one user action.
//
// RemotePath is a full key ("alice/docs/a.txt") or, for directory downloads,
// list and prefix deletes, a folder key ("alice/docs/"). LocalPath is the
// source of an upload or the destination directory of a download.
type Request struct {
	Kind       Kind   `json:"kind"`
	LocalPath  string `json:"local_path,omitempty"`
	RemotePath string `json:"remote_path,omitempty"`
}

// Item is one leaf transfer. It is never modified once planned.
type Item struct {
	Direction Direction `json:"direction"`
	LocalPath string    `json:"local_path,omitempty"`
	RemoteKey string    `json:"remote_key"`
	Size      int64     `json:"size"`
}

// Outcome is the final state of an item. Err is nil for succeeded items.
type Outcome struct {
	Item   Item   `json:"item"`
	State  State  `json:"state"`
	Err    error  `json:"-"`
	Reason string `json:"reason,omitempty"`
	Bytes  int64  `json:"bytes"`
}

// Plan is the ordered list of items built from one request.
// Problems holds the paths that could not be planned; they are reported as
// failed outcomes when the plan runs.
type Plan struct {
	Request  Request   `json:"request"`
	Items    []Item    `json:"items"`
	Problems []Outcome `json:"problems,omitempty"`
}

// Result aggregates the outcomes of one request.
type Result struct {
	Kind      Kind           `json:"kind"`
	Outcomes  []Outcome      `json:"outcomes"`
	Entries   []dto.S3Object `json:"entries,omitempty"`
	Succeeded int            `json:"succeeded"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Bytes     int64          `json:"bytes"`
	FirstErr  error          `json:"-"`
}

func (r *Result) add(o Outcome) {
	if o.Err != nil {
		o.Reason = o.Err.Error()
	}
	switch o.State {
	case StateSucceeded:
		r.Succeeded++
		r.Bytes += o.Bytes
	case StateSkipped:
		r.Skipped++
	case StateFailed:
		r.Failed++
		if r.FirstErr == nil {
			r.FirstErr = o.Err
		}
	}
	r.Outcomes = append(r.Outcomes, o)
}

// OK reports whether no item failed.
func (r *Result) OK() bool {
	return r.Failed == 0
}

// Failures returns the failed outcomes in execution order.
func (r *Result) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.State == StateFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// Summary returns the aggregate counts in one line.
func (r *Result) Summary() string {
	return fmt.Sprintf("%d succeeded, %d skipped, %d failed", r.Succeeded, r.Skipped, r.Failed)
}

// Observer is notified of the progress of a running plan.
type Observer interface {
	ItemStarted(item Item, index, total int)
	ItemFinished(outcome Outcome, index, total int)
}
