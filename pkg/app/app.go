// Package app exposes the session of one user as a local JSON API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sgaunet/s3box/pkg/health"
	"github.com/sgaunet/s3box/pkg/session"
)

const (
	// BrowsePageSize is the number of entries of one browse page.
	BrowsePageSize = 50

	readHeaderTimeout = 10 * time.Second
)

// App serves the JSON API
type App struct {
	sess     *session.Session
	monitors []*health.Monitor
	router   *mux.Router
	srv      *http.Server
	log      *slog.Logger
}

// NewApp creates the API of sess listening on addr.
func NewApp(sess *session.Session, addr string) *App {
	s := &App{
		sess:     sess,
		monitors: sess.Monitors(),
		router:   mux.NewRouter().StrictSlash(true),
		log:      slog.New(slog.DiscardHandler),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.initRouter()
	return s
}

// SetLogger sets the logger
func (s *App) SetLogger(log *slog.Logger) {
	s.log = log
}

// Router returns the handler of the API.
func (s *App) Router() http.Handler {
	return s.router
}

// StartServer starts the health monitors and serves until StopServer is called.
func (s *App) StartServer(ctx context.Context) error {
	for _, m := range s.monitors {
		m.Start(ctx)
	}
	s.log.Info("listen", slog.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// StopServer stops the server and the health monitors.
func (s *App) StopServer(ctx context.Context) error {
	for _, m := range s.monitors {
		m.Stop()
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
