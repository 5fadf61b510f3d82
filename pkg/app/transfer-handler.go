package app

import (
	"log/slog"
	"net/http"

	"github.com/sgaunet/s3box/pkg/transfer"
)

// TransferHandler executes one transfer request. Item failures are listed in
// the result and do not change the status code.
func (s *App) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req transfer.Request
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.log.Info("Transfer request",
		slog.String("kind", string(req.Kind)),
		slog.String("local", req.LocalPath),
		slog.String("remote", req.RemotePath))

	res, err := s.sess.Execute(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("Transfer done", slog.String("kind", string(req.Kind)), slog.String("summary", res.Summary()))
	s.writeJSON(w, http.StatusOK, res)
}
