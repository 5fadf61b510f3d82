package app

import (
	"net/http"
	"strings"

	"github.com/sgaunet/s3box/pkg/dto"
	"github.com/sgaunet/s3box/pkg/pathmap"
	"github.com/sgaunet/s3box/pkg/transfer"
)

const (
	msgNothingUploaded = "nothing uploaded yet"
	msgFolderEmpty     = "folder is empty"
)

type browseResponse struct {
	Folder  string         `json:"folder"`
	Parent  string         `json:"parent,omitempty"`
	Entries []dto.S3Object `json:"entries"`
	Page    dto.PageInfo   `json:"page"`
	Message string         `json:"message,omitempty"`
}

// BrowseHandler lists one level of a folder, the namespace root by default.
func (s *App) BrowseHandler(w http.ResponseWriter, r *http.Request) {
	page, err := ParsePaginationParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	root := pathmap.Prefix(s.sess.Namespace())
	folder := r.URL.Query().Get("folder")
	if folder == "" {
		folder = root
	}
	if !strings.HasSuffix(folder, pathmap.Separator) {
		folder += pathmap.Separator
	}

	res, err := s.sess.Execute(r.Context(), transfer.Request{Kind: transfer.KindList, RemotePath: folder})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	info := dto.NewPageInfo(int64(len(res.Entries)), BrowsePageSize, page)
	resp := browseResponse{
		Folder:  folder,
		Parent:  pathmap.Parent(folder),
		Entries: res.Entries[info.Start:info.End],
		Page:    info,
	}
	if len(res.Entries) == 0 {
		resp.Message = msgFolderEmpty
		if folder == root {
			resp.Message = msgNothingUploaded
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}
