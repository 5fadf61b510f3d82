package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sgaunet/s3box/pkg/sharing"
	"github.com/sgaunet/s3box/pkg/transfer"
)

type createShareRequest struct {
	Folder   string `json:"folder"`
	TTLHours int    `json:"ttl_hours,omitempty"`
}

type redeemRequest struct {
	LocalPath string `json:"local_path"`
}

type redeemResponse struct {
	Share  sharing.Share    `json:"share"`
	Result *transfer.Result `json:"result"`
}

// CreateShareHandler creates a code for a folder of the user.
func (s *App) CreateShareHandler(w http.ResponseWriter, r *http.Request) {
	var req createShareRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Folder == "" {
		s.writeError(w, r, errors.Join(ErrInvalidBody, errors.New("folder is required")))
		return
	}
	share, err := s.sess.Sharing().Share(r.Context(), req.Folder, time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, share)
}

// GetShareHandler resolves a code without downloading anything.
func (s *App) GetShareHandler(w http.ResponseWriter, r *http.Request) {
	share, err := s.sess.Sharing().Redeem(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, share)
}

// RedeemShareHandler downloads the folder behind a code into local_path.
func (s *App) RedeemShareHandler(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	share, res, err := s.sess.Redeem(r.Context(), mux.Vars(r)["code"], req.LocalPath)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, redeemResponse{Share: share, Result: res})
}

// RevokeShareHandler deletes a code of the user.
func (s *App) RevokeShareHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sess.Sharing().Revoke(r.Context(), mux.Vars(r)["code"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
