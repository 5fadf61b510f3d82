package shell

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/sgaunet/s3box/pkg/dbsvc"
)

// PrintHistory prints transfer log entries, newest first.
func PrintHistory(w io.Writer, entries []dbsvc.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no transfers recorded yet")
		return
	}
	for _, e := range entries {
		line := fmt.Sprintf("%-14s %-9s %-9s %s", humanize.Time(e.RecordedAt), e.Direction, e.State, e.RemoteKey)
		if e.Bytes > 0 {
			line += " (" + humanize.Bytes(uint64(e.Bytes)) + ")"
		}
		if e.Reason != "" {
			line += ": " + e.Reason
		}
		fmt.Fprintln(w, line)
	}
}
