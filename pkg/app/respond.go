package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/sgaunet/s3box/pkg/pathmap"
	"github.com/sgaunet/s3box/pkg/s3svc"
	"github.com/sgaunet/s3box/pkg/session"
	"github.com/sgaunet/s3box/pkg/sharing"
	"github.com/sgaunet/s3box/pkg/transfer"
)

// ErrInvalidBody is returned when the request body is not the expected JSON document.
var ErrInvalidBody = errors.New("invalid request body")

type errorResponse struct {
	Error string `json:"error"`
}

func (s *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("Failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	} else {
		s.log.Debug("Request rejected",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps an error to the HTTP status of the response.
func statusFor(err error) int {
	switch {
	case errors.Is(err, transfer.ErrPermissionScope),
		errors.Is(err, sharing.ErrNotOwner),
		errors.Is(err, s3svc.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidBody),
		errors.Is(err, ErrInvalidPageFormat),
		errors.Is(err, ErrInvalidPageValue),
		errors.Is(err, ErrInvalidLimit),
		errors.Is(err, transfer.ErrInvalidRequest),
		errors.Is(err, pathmap.ErrInvalidKey),
		errors.Is(err, pathmap.ErrInvalidPath),
		errors.Is(err, pathmap.ErrInvalidNamespace),
		errors.Is(err, sharing.ErrInvalidTTL):
		return http.StatusBadRequest
	case errors.Is(err, sharing.ErrCodeNotFound),
		errors.Is(err, s3svc.ErrNotFound),
		errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, sharing.ErrCodeExpired):
		return http.StatusGone
	case errors.Is(err, session.ErrNoHistory):
		return http.StatusNotImplemented
	case errors.Is(err, s3svc.ErrRemoteUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrInvalidBody, err)
	}
	return nil
}
