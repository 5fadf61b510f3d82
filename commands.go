package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sgaunet/s3box/pkg/app"
	"github.com/sgaunet/s3box/pkg/config"
	"github.com/sgaunet/s3box/pkg/scheduler"
	"github.com/sgaunet/s3box/pkg/session"
	"github.com/sgaunet/s3box/pkg/shell"
	"github.com/sgaunet/s3box/pkg/transfer"
)

const (
	defaultLogLevel = "warn"
	shutdownTimeout = 10 * time.Second
)

// errItemsFailed is returned when at least one item of a command failed.
// The failures were already printed.
var errItemsFailed = errors.New("some items failed")

// runner holds what every command needs.
type runner struct {
	in      *bufio.Reader
	out     io.Writer
	log     *slog.Logger
	cancel  context.CancelFunc
	cfg     config.Config
	cfgPath string
	sess    *session.Session
	// connect opens the session; session.Open when nil.
	connect func(ctx context.Context, cfg config.Config, username string, log *slog.Logger) (*session.Session, error)
}

// before loads the configuration and the logger.
func (r *runner) before(c *cli.Context) error {
	r.cfgPath = c.String("config")
	if r.cfgPath == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		r.cfgPath = path
	}

	cfg, err := config.ReadYamlCnxFile(r.cfgPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	r.cfg = config.ApplyEnv(cfg)

	level := c.String("log-level")
	if level == "" {
		level = r.cfg.LogLevel
	}
	if level == "" {
		level = defaultLogLevel
	}
	r.log = initTrace(level)
	if r.cancel != nil {
		SetupCloseHandler(c.Context, r.cancel, r.log)
	}
	return nil
}

func (r *runner) after(*cli.Context) error {
	if r.sess == nil {
		return nil
	}
	return r.sess.Close()
}

// open builds the session of the user. The user name is prompted for when
// interactive and not configured.
func (r *runner) open(c *cli.Context, interactive bool) (*session.Session, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w (run s3box init)", err)
	}
	username := c.String("user")
	if username == "" {
		username = r.cfg.Username
	}
	if username == "" {
		if !interactive {
			return nil, fmt.Errorf("%w: no user name, use --user or set username", config.ErrConfiguration)
		}
		name, err := shell.PromptUsername(r.in, r.out)
		if err != nil {
			return nil, err
		}
		username = name
	}

	connect := r.connect
	if connect == nil {
		connect = session.Open
	}
	sess, err := connect(c.Context, r.cfg, username, r.log)
	if err != nil {
		return nil, err
	}
	r.sess = sess
	if !interactive {
		sess.Engine().SetObserver(shell.NewProgress(r.out))
	}
	return sess, nil
}

// setup runs the wizard and saves the configuration.
func (r *runner) setup() error {
	wiz := shell.NewWizard(r.in, r.out)
	wiz.HideSecretFrom(os.Stdin)
	cfg, err := wiz.Run(r.cfg)
	if err != nil {
		return err
	}
	if err := config.WriteYamlCnxFile(r.cfgPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "configuration saved to %s\n", r.cfgPath)
	r.cfg = cfg
	return nil
}

func (r *runner) runInit(*cli.Context) error {
	return r.setup()
}

func (r *runner) runShell(c *cli.Context) error {
	if err := r.cfg.Validate(); err != nil {
		fmt.Fprintf(r.out, "%s\n", err)
		if err := r.setup(); err != nil {
			return err
		}
	}
	sess, err := r.open(c, true)
	if err != nil {
		return err
	}
	sh := shell.New(sess, r.in, r.out)
	sh.SetLogger(r.log)
	if err := sh.Run(c.Context); err != nil {
		return err
	}
	if sh.Failed() {
		return errItemsFailed
	}
	return nil
}

// execute runs req and prints the summary.
func (r *runner) execute(ctx context.Context, sess *session.Session, req transfer.Request) error {
	res, err := sess.Execute(ctx, req)
	if err != nil {
		return err
	}
	shell.PrintSummary(r.out, res)
	if !res.OK() {
		return errItemsFailed
	}
	return nil
}

func (r *runner) runUpload(c *cli.Context) error {
	if c.NArg() == 0 {
		return usageError(c)
	}
	sess, err := r.open(c, false)
	if err != nil {
		return err
	}
	var failed bool
	for _, path := range c.Args().Slice() {
		kind := transfer.KindUploadFile
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			kind = transfer.KindUploadDir
		}
		err := r.execute(c.Context, sess, transfer.Request{Kind: kind, LocalPath: path})
		if errors.Is(err, errItemsFailed) {
			failed = true
			continue
		}
		if err != nil {
			return err
		}
	}
	if failed {
		return errItemsFailed
	}
	return nil
}

func (r *runner) runDownload(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError(c)
	}
	sess, err := r.open(c, false)
	if err != nil {
		return err
	}
	key, folder, err := sess.Resolve(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	kind := transfer.KindDownloadFile
	if folder {
		kind = transfer.KindDownloadDir
	}
	return r.execute(c.Context, sess, transfer.Request{Kind: kind, RemotePath: key, LocalPath: c.String("dest")})
}

func (r *runner) runList(c *cli.Context) error {
	sess, err := r.open(c, false)
	if err != nil {
		return err
	}
	folder, _, err := sess.Resolve(c.Context, folderArg(c))
	if err != nil {
		return err
	}
	res, err := sess.Execute(c.Context, transfer.Request{Kind: transfer.KindList, RemotePath: folder})
	if err != nil {
		return err
	}
	if len(res.Entries) == 0 {
		fmt.Fprintln(r.out, "folder is empty")
	}
	for i, e := range res.Entries {
		shell.PrintEntry(r.out, i+1, e)
	}
	return nil
}

func (r *runner) runRemove(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError(c)
	}
	sess, err := r.open(c, false)
	if err != nil {
		return err
	}
	key, _, err := sess.Resolve(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	return r.execute(c.Context, sess, transfer.Request{Kind: transfer.KindDelete, RemotePath: key})
}

func (r *runner) runShareGenerate(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError(c)
	}
	hours := c.Int("hours")
	if hours < 0 {
		return fmt.Errorf("invalid number of hours %d", hours)
	}
	sess, err := r.open(c, false)
	if err != nil {
		return err
	}
	folder, _, err := sess.Resolve(c.Context, folderArg(c))
	if err != nil {
		return err
	}
	share, err := sess.Sharing().Share(c.Context, folder, time.Duration(hours)*time.Hour)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, share.Code)
	return nil
}

func (r *runner) runShareRedeem(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError(c)
	}
	sess, err := r.open(c, false)
	if err != nil {
		return err
	}
	share, res, err := sess.Redeem(c.Context, c.Args().First(), c.String("dest"))
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "shared folder %s\n", share.Path)
	shell.PrintSummary(r.out, res)
	if !res.OK() {
		return errItemsFailed
	}
	return nil
}

func (r *runner) runShareRevoke(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError(c)
	}
	sess, err := r.open(c, false)
	if err != nil {
		return err
	}
	_, err = sess.Sharing().Revoke(c.Context, c.Args().First())
	return err
}

func (r *runner) runHistory(c *cli.Context) error {
	sess, err := r.open(c, false)
	if err != nil {
		return err
	}
	entries, err := sess.History(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	shell.PrintHistory(r.out, entries)
	return nil
}

func (r *runner) runServe(c *cli.Context) error {
	sess, err := r.open(c, false)
	if err != nil {
		return err
	}
	sess.Engine().SetObserver(nil)

	sched := scheduler.NewScheduler(r.cfg.PurgeSchedule(), sess.Sharing())
	sched.SetLogger(r.log)
	if err := sched.Start(c.Context); err != nil {
		return err
	}
	defer sched.Stop()

	srv := app.NewApp(sess, r.cfg.ServeAddr())
	srv.SetLogger(r.log)
	errc := make(chan error, 1)
	go func() { errc <- srv.StartServer(c.Context) }()

	select {
	case err := <-errc:
		return err
	case <-c.Context.Done():
	}
	r.log.Info("stop the server")
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Context), shutdownTimeout)
	defer cancel()
	return srv.StopServer(ctx)
}

func usageError(c *cli.Context) error {
	return fmt.Errorf("usage: s3box %s %s", c.Command.FullName(), c.Command.ArgsUsage)
}

// folderArg returns the first argument as a folder path.
func folderArg(c *cli.Context) string {
	return strings.TrimRight(c.Args().First(), "/") + "/"
}
