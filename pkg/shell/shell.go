// Package shell is the interactive menu of s3box.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sgaunet/s3box/pkg/dto"
	"github.com/sgaunet/s3box/pkg/pathmap"
	"github.com/sgaunet/s3box/pkg/session"
	"github.com/sgaunet/s3box/pkg/transfer"
)

const (
	browsePageSize = 50
	historyLimit   = 20
)

// Shell runs the menu of one session.
type Shell struct {
	sess   *session.Session
	p      *prompter
	out    io.Writer
	failed bool
	log    *slog.Logger
}

// New creates a shell reading commands from in and printing to out.
// Progress of every transfer is printed to out.
func New(sess *session.Session, in io.Reader, out io.Writer) *Shell {
	sess.Engine().SetObserver(NewProgress(out))
	return &Shell{
		sess: sess,
		p:    newPrompter(in, out),
		out:  out,
		log:  slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets the logger
func (sh *Shell) SetLogger(log *slog.Logger) {
	sh.log = log
}

// Failed reports whether any item of the session failed.
func (sh *Shell) Failed() bool {
	return sh.failed
}

// Run shows the menu until the user quits, the input ends or ctx is cancelled.
func (sh *Shell) Run(ctx context.Context) error {
	fmt.Fprintf(sh.out, "s3box - bucket %s - user %s\n", sh.sess.S3().BucketName(), sh.sess.Namespace())
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintln(sh.out)
		fmt.Fprintln(sh.out, " 1) upload   2) browse   3) download   4) delete")
		fmt.Fprintln(sh.out, " 5) share    6) history  q) quit")
		choice, err := sh.p.ask(">")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch strings.ToLower(choice) {
		case "1", "upload":
			err = sh.upload(ctx)
		case "2", "browse":
			err = sh.browse(ctx)
		case "3", "download":
			err = sh.download(ctx)
		case "4", "delete":
			err = sh.remove(ctx)
		case "5", "share":
			err = sh.share(ctx)
		case "6", "history":
			err = sh.history(ctx)
		case "q", "quit", "exit":
			return nil
		case "":
			continue
		default:
			fmt.Fprintf(sh.out, "unknown choice %q\n", choice)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(sh.out, "error: %s\n", err)
		}
	}
}

func (sh *Shell) execute(ctx context.Context, req transfer.Request) error {
	res, err := sh.sess.Execute(ctx, req)
	if err != nil {
		sh.failed = true
		return err
	}
	if req.Kind != transfer.KindList {
		PrintSummary(sh.out, res)
	}
	if !res.OK() {
		sh.failed = true
	}
	return nil
}

func (sh *Shell) upload(ctx context.Context) error {
	path, err := sh.p.askRequired("local file or directory")
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	kind := transfer.KindUploadFile
	if info.IsDir() {
		kind = transfer.KindUploadDir
	}
	return sh.execute(ctx, transfer.Request{Kind: kind, LocalPath: path})
}

func (sh *Shell) download(ctx context.Context) error {
	rel, err := sh.p.askRequired("remote file or folder")
	if err != nil {
		return err
	}
	dest, err := sh.p.askDefault("destination directory", ".")
	if err != nil {
		return err
	}
	key, folder, err := sh.sess.Resolve(ctx, rel)
	if err != nil {
		return err
	}
	kind := transfer.KindDownloadFile
	if folder {
		kind = transfer.KindDownloadDir
	}
	return sh.execute(ctx, transfer.Request{Kind: kind, RemotePath: key, LocalPath: dest})
}

func (sh *Shell) remove(ctx context.Context) error {
	rel, err := sh.p.askRequired("remote file or folder to delete")
	if err != nil {
		return err
	}
	key, _, err := sh.sess.Resolve(ctx, rel)
	if err != nil {
		return err
	}
	ok, err := sh.p.confirm(fmt.Sprintf("delete %s", key))
	if err != nil || !ok {
		return err
	}
	return sh.execute(ctx, transfer.Request{Kind: transfer.KindDelete, RemotePath: key})
}

func (sh *Shell) browse(ctx context.Context) error {
	root := pathmap.Prefix(sh.sess.Namespace())
	folder, page := root, 1
	for {
		res, err := sh.sess.Execute(ctx, transfer.Request{Kind: transfer.KindList, RemotePath: folder})
		if err != nil {
			return err
		}
		info := dto.NewPageInfo(int64(len(res.Entries)), browsePageSize, page)
		entries := res.Entries[info.Start:info.End]

		fmt.Fprintf(sh.out, "\n%s\n", folder)
		switch {
		case len(res.Entries) == 0 && folder == root:
			fmt.Fprintln(sh.out, "  nothing uploaded yet")
		case len(res.Entries) == 0:
			fmt.Fprintln(sh.out, "  folder is empty")
		}
		for i, e := range entries {
			PrintEntry(sh.out, info.Start+i+1, e)
		}
		if info.TotalPages > 1 {
			fmt.Fprintf(sh.out, "page %d/%d\n", info.Page, info.TotalPages)
		}

		choice, err := sh.p.ask("number to open, b back, n/p next/previous page, enter to leave")
		if err != nil {
			return err
		}
		switch choice {
		case "":
			return nil
		case "b":
			if folder == root {
				return nil
			}
			folder, page = pathmap.Parent(folder), 1
		case "n":
			if info.HasNext {
				page++
			}
		case "p":
			if info.HasPrev {
				page--
			}
		default:
			n, err := strconv.Atoi(choice)
			if err != nil || n < 1 || n > len(res.Entries) {
				fmt.Fprintf(sh.out, "invalid choice %q\n", choice)
				continue
			}
			if e := res.Entries[n-1]; e.IsFolder {
				folder, page = e.Key, 1
			} else {
				fmt.Fprintf(sh.out, "%s is a file\n", e.Name)
			}
		}
	}
}

// PrintEntry prints one line of a folder listing.
func PrintEntry(w io.Writer, n int, e dto.S3Object) {
	if e.IsFolder {
		fmt.Fprintf(w, "%4d) %s/\n", n, e.Name)
		return
	}
	fmt.Fprintf(w, "%4d) %-40s %10s  %s\n", n, e.Name, humanize.Bytes(uint64(max(e.Size, 0))), humanize.Time(e.LastModified))
}

func (sh *Shell) share(ctx context.Context) error {
	choice, err := sh.p.ask("g) generate  r) redeem  x) revoke")
	if err != nil {
		return err
	}
	switch strings.ToLower(choice) {
	case "g":
		return sh.generateShare(ctx)
	case "r":
		return sh.redeemShare(ctx)
	case "x":
		code, err := sh.p.askRequired("code")
		if err != nil {
			return err
		}
		share, err := sh.sess.Sharing().Revoke(ctx, code)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "code %s revoked\n", share.Code)
		return nil
	default:
		fmt.Fprintf(sh.out, "unknown choice %q\n", choice)
		return nil
	}
}

func (sh *Shell) generateShare(ctx context.Context) error {
	rel, err := sh.p.askRequired("folder to share")
	if err != nil {
		return err
	}
	key, err := pathmap.JoinKey(sh.sess.Namespace(), rel)
	if err != nil {
		return err
	}
	hours, err := sh.p.ask("expires in hours (empty for never)")
	if err != nil {
		return err
	}
	var ttl time.Duration
	if hours != "" {
		h, err := strconv.Atoi(hours)
		if err != nil || h < 0 {
			return fmt.Errorf("invalid number of hours %q", hours)
		}
		ttl = time.Duration(h) * time.Hour
	}
	share, err := sh.sess.Sharing().Share(ctx, key, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "share code for %s: %s\n", share.Path, share.Code)
	if share.ExpiresAt != nil {
		fmt.Fprintf(sh.out, "expires %s\n", humanize.Time(*share.ExpiresAt))
	}
	return nil
}

func (sh *Shell) redeemShare(ctx context.Context) error {
	code, err := sh.p.askRequired("code")
	if err != nil {
		return err
	}
	dest, err := sh.p.askDefault("destination directory", ".")
	if err != nil {
		return err
	}
	share, res, err := sh.sess.Redeem(ctx, code, dest)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "shared folder %s\n", share.Path)
	PrintSummary(sh.out, res)
	if !res.OK() {
		sh.failed = true
	}
	return nil
}

func (sh *Shell) history(ctx context.Context) error {
	entries, err := sh.sess.History(ctx, historyLimit)
	if errors.Is(err, session.ErrNoHistory) {
		fmt.Fprintln(sh.out, "no transfer history: configure share.databaseurl to record transfers")
		return nil
	}
	if err != nil {
		return err
	}
	PrintHistory(sh.out, entries)
	return nil
}
