package app

import (
	"net/http"

	"github.com/sgaunet/s3box/pkg/dbsvc"
)

// HistoryHandler returns the latest transfers of the user.
func (s *App) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := ParseLimitParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.sess.History(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []dbsvc.Entry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}
