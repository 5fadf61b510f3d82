package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var version = "development"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env file: %s\n", err)
	}

	// Handle SIGTERM/SIGINT
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	r := &runner{
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		log:    slog.New(slog.DiscardHandler),
		cancel: cancelFunc,
	}

	if err := newApp(r).RunContext(ctx, os.Args); err != nil {
		if !errors.Is(err, errItemsFailed) {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
		}
		os.Exit(1)
	}
}

func newApp(r *runner) *cli.App {
	return &cli.App{
		Name:    "s3box",
		Usage:   "Personal file storage in a shared S3 bucket",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"f"},
				Usage:   "Configuration file (default ~/.s3box/config.yaml)",
				EnvVars: []string{"S3BOX_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "User name, the namespace of your files in the bucket",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Before: r.before,
		After:  r.after,
		Action: r.runShell,
		Commands: []*cli.Command{
			{
				Name:   "shell",
				Usage:  "Interactive menu (default)",
				Action: r.runShell,
			},
			{
				Name:   "init",
				Usage:  "Create or update the configuration file",
				Action: r.runInit,
			},
			{
				Name:      "upload",
				Usage:     "Upload files or directories",
				ArgsUsage: "PATH...",
				Action:    r.runUpload,
			},
			{
				Name:      "download",
				Usage:     "Download a file or a folder",
				ArgsUsage: "REMOTE_PATH",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dest", Aliases: []string{"d"}, Value: ".", Usage: "Destination directory"},
				},
				Action: r.runDownload,
			},
			{
				Name:      "ls",
				Usage:     "List one folder level",
				ArgsUsage: "[REMOTE_FOLDER]",
				Action:    r.runList,
			},
			{
				Name:      "rm",
				Usage:     "Delete a file or a folder",
				ArgsUsage: "REMOTE_PATH",
				Action:    r.runRemove,
			},
			{
				Name:  "share",
				Usage: "Share folders with other users",
				Subcommands: []*cli.Command{
					{
						Name:      "generate",
						Usage:     "Create a share code for one of your folders",
						ArgsUsage: "REMOTE_FOLDER",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "hours", Usage: "Hours before the code expires, 0 for never"},
						},
						Action: r.runShareGenerate,
					},
					{
						Name:      "redeem",
						Usage:     "Download the folder behind a share code",
						ArgsUsage: "CODE",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "dest", Aliases: []string{"d"}, Value: ".", Usage: "Destination directory"},
						},
						Action: r.runShareRedeem,
					},
					{
						Name:      "revoke",
						Usage:     "Delete one of your share codes",
						ArgsUsage: "CODE",
						Action:    r.runShareRevoke,
					},
				},
			},
			{
				Name:  "history",
				Usage: "Show the latest transfers",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Number of entries"},
				},
				Action: r.runHistory,
			},
			{
				Name:   "serve",
				Usage:  "Serve the local JSON API",
				Action: r.runServe,
			},
		},
	}
}

// SetupCloseHandler cancels the context on SIGINT/SIGTERM.
func SetupCloseHandler(ctx context.Context, cancelFunc context.CancelFunc, log *slog.Logger) {
	c := make(chan os.Signal, 5)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		select {
		case s := <-c:
			log.Info("signal received", slog.String("signal", s.String()))
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// initTrace initializes the logger
func initTrace(debugLevel string) *slog.Logger {
	handlerOptions := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}

	switch debugLevel {
	case "debug":
		handlerOptions.Level = slog.LevelDebug
		handlerOptions.AddSource = true
	case "info":
		handlerOptions.Level = slog.LevelInfo
	case "warn":
		handlerOptions.Level = slog.LevelWarn
	case "error":
		handlerOptions.Level = slog.LevelError
	default:
		handlerOptions.Level = slog.LevelInfo
	}

	// stdout belongs to the menu and command output
	handler := slog.NewTextHandler(os.Stderr, handlerOptions)
	logger := slog.New(handler)
	return logger
}
