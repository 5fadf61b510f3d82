package shell

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/sgaunet/s3box/pkg/transfer"
)

// Progress prints one line per finished item. It implements transfer.Observer.
type Progress struct {
	w io.Writer
}

// NewProgress creates a progress printer writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w}
}

// ItemStarted is a no-op; the line is printed once the item is done.
func (p *Progress) ItemStarted(transfer.Item, int, int) {}

// ItemFinished prints the state of one item.
func (p *Progress) ItemFinished(o transfer.Outcome, index, total int) {
	line := fmt.Sprintf("[%d/%d] %s %s", index+1, total, o.Item.Direction, o.Item.RemoteKey)
	switch o.State {
	case transfer.StateSucceeded:
		if o.Item.Direction != transfer.DirectionDelete {
			line += " (" + humanize.Bytes(uint64(max(o.Bytes, 0))) + ")"
		}
		line += " ok"
	case transfer.StateSkipped:
		line += " skipped: " + o.Reason
	default:
		line += " FAILED: " + o.Reason
	}
	fmt.Fprintln(p.w, line)
}

// PrintSummary prints the aggregate counts of res and every failed key.
func PrintSummary(w io.Writer, res *transfer.Result) {
	fmt.Fprintf(w, "%s, %s transferred\n", res.Summary(), humanize.Bytes(uint64(max(res.Bytes, 0))))
	for _, o := range res.Failures() {
		key := o.Item.RemoteKey
		if key == "" {
			key = o.Item.LocalPath
		}
		fmt.Fprintf(w, "  %s: %s\n", key, o.Reason)
	}
}
