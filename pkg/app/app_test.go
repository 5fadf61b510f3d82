package app_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgaunet/s3box/pkg/app"
	"github.com/sgaunet/s3box/pkg/config"
	"github.com/sgaunet/s3box/pkg/health"
	"github.com/sgaunet/s3box/pkg/s3svc/s3svctest"
	"github.com/sgaunet/s3box/pkg/session"
	"github.com/sgaunet/s3box/pkg/sharing"
	"github.com/sgaunet/s3box/pkg/transfer"
)

func newApp(t *testing.T, user string) (http.Handler, *s3svctest.Fake) {
	t.Helper()
	fake := s3svctest.New("files")
	cfg := config.Config{S3accessKey: "k", S3secretKey: "s", S3Region: "eu-west-1", Bucket: "files"}
	sess, err := session.New(cfg, user, fake, nil, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return app.NewApp(sess, "127.0.0.1:0").Router(), fake
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type browsePage struct {
	Folder  string `json:"folder"`
	Parent  string `json:"parent"`
	Entries []struct {
		Key      string `json:"key"`
		IsFolder bool   `json:"isfolder"`
	} `json:"entries"`
	Page struct {
		Page       int  `json:"page"`
		TotalPages int  `json:"totalPages"`
		HasNext    bool `json:"hasNext"`
	} `json:"page"`
	Message string `json:"message"`
}

func TestTransferUpload(t *testing.T) {
	h, fake := newApp(t, "alice")
	file := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	body, err := json.Marshal(transfer.Request{Kind: transfer.KindUploadFile, LocalPath: file})
	require.NoError(t, err)
	rec := do(t, h, http.MethodPost, "/api/transfers", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[transfer.Result](t, rec)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, int64(5), res.Bytes)
	assert.Equal(t, []string{"alice/notes.txt"}, fake.Keys())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestTransferErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "not json", body: "{", want: http.StatusBadRequest},
		{name: "unknown field", body: `{"kind":"delete","path":"x"}`, want: http.StatusBadRequest},
		{name: "unknown kind", body: `{"kind":"rename"}`, want: http.StatusBadRequest},
		{name: "delete outside namespace", body: `{"kind":"delete","remote_path":"bob/a.txt"}`, want: http.StatusForbidden},
		{name: "missing local file", body: `{"kind":"upload-file","local_path":"/does/not/exist"}`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, fake := newApp(t, "alice")
			fake.Put("bob/a.txt", []byte("b"))
			rec := do(t, h, http.MethodPost, "/api/transfers", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
			assert.Zero(t, fake.Calls("DeleteObject"))
		})
	}
}

func TestTransferPartialFailure(t *testing.T) {
	h, fake := newApp(t, "alice")
	fake.Put("alice/docs/a.txt", []byte("a"))
	fake.Put("alice/docs/b.txt", []byte("b"))
	fake.FailOn("DeleteObject", "alice/docs/b.txt", errors.New("timeout"))

	rec := do(t, h, http.MethodPost, "/api/transfers", `{"kind":"delete","remote_path":"alice/docs/"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[transfer.Result](t, rec)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Outcomes, 2)
	assert.NotEmpty(t, res.Outcomes[1].Reason)
}

func TestBrowse(t *testing.T) {
	h, fake := newApp(t, "alice")

	rec := do(t, h, http.MethodGet, "/api/browse", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[browsePage](t, rec)
	assert.Equal(t, "alice/", page.Folder)
	assert.Equal(t, "nothing uploaded yet", page.Message)
	assert.Empty(t, page.Entries)

	fake.Put("alice/docs/", nil)
	rec = do(t, h, http.MethodGet, "/api/browse?folder=alice/docs", "")
	page = decode[browsePage](t, rec)
	assert.Equal(t, "alice/docs/", page.Folder)
	assert.Equal(t, "alice/", page.Parent)
	assert.Equal(t, "folder is empty", page.Message)

	for i := range 60 {
		fake.Put(fmt.Sprintf("alice/docs/f%02d.txt", i), []byte("x"))
	}
	fake.Put("alice/docs/sub/x.txt", []byte("x"))

	rec = do(t, h, http.MethodGet, "/api/browse?folder=alice/docs/", "")
	page = decode[browsePage](t, rec)
	require.Len(t, page.Entries, app.BrowsePageSize)
	assert.True(t, page.Entries[0].IsFolder, "folders come first")
	assert.Equal(t, "alice/docs/sub/", page.Entries[0].Key)
	assert.Equal(t, 2, page.Page.TotalPages)
	assert.True(t, page.Page.HasNext)
	assert.Empty(t, page.Message)

	rec = do(t, h, http.MethodGet, "/api/browse?folder=alice/docs/&page=2", "")
	page = decode[browsePage](t, rec)
	assert.Len(t, page.Entries, 11)
	assert.Equal(t, "alice/docs/f59.txt", page.Entries[10].Key)

	rec = do(t, h, http.MethodGet, "/api/browse?page=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShares(t *testing.T) {
	h, fake := newApp(t, "alice")
	fake.Put("alice/docs/a.txt", []byte("alpha"))

	rec := do(t, h, http.MethodPost, "/api/shares", `{"folder":"bob/docs"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/shares", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/shares", `{"folder":"alice/docs","ttl_hours":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/shares", `{"folder":"alice/nosuchfolder"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/shares", `{"folder":"alice/docs/a.txt"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/shares", `{"folder":"alice/docs","ttl_hours":24}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	share := decode[sharing.Share](t, rec)
	assert.Equal(t, "alice/docs/", share.Path)
	require.NotNil(t, share.ExpiresAt)

	rec = do(t, h, http.MethodGet, "/api/shares/"+strings.ToLower(share.Code), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice/docs/", decode[sharing.Share](t, rec).Path)

	dest := t.TempDir()
	body, err := json.Marshal(map[string]string{"local_path": dest})
	require.NoError(t, err)
	rec = do(t, h, http.MethodPost, "/api/shares/"+share.Code+"/download", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data, err := os.ReadFile(filepath.Join(dest, "docs", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	rec = do(t, h, http.MethodDelete, "/api/shares/"+share.Code, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/shares/"+share.Code, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryWithoutDatabase(t *testing.T) {
	h, _ := newApp(t, "alice")
	assert.Equal(t, http.StatusNotImplemented, do(t, h, http.MethodGet, "/api/history", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/history?limit=-1", "").Code)
}

func TestHealth(t *testing.T) {
	h, _ := newApp(t, "alice")
	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[health.Report](t, rec)
	assert.Equal(t, health.StatusHealthy, report.Status)
	require.Len(t, report.Components, 1)
	assert.Equal(t, "bucket", report.Components[0].Name)

	h, fake := newApp(t, "alice")
	fake.FailOn("HeadBucket", "", errors.New("connection refused"))
	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, health.StatusUnhealthy, decode[health.Report](t, rec).Status)
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newApp(t, "alice")
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/transfers", "").Code)
}
