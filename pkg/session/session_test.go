package session_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgaunet/s3box/pkg/config"
	"github.com/sgaunet/s3box/pkg/s3svc"
	"github.com/sgaunet/s3box/pkg/s3svc/s3svctest"
	"github.com/sgaunet/s3box/pkg/session"
	"github.com/sgaunet/s3box/pkg/sharing"
	"github.com/sgaunet/s3box/pkg/transfer"
)

func testConfig() config.Config {
	return config.Config{
		S3accessKey: "key",
		S3secretKey: "secret",
		S3Region:    "eu-west-1",
		Bucket:      "files",
	}
}

func newSession(t *testing.T, fake *s3svctest.Fake, user string) *session.Session {
	t.Helper()
	s, err := session.New(testConfig(), user, fake, nil, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(c *config.Config)
		user string
	}{
		{name: "empty user", user: " "},
		{name: "reserved user", user: "_system"},
		{name: "bad policy", user: "alice", cfg: func(c *config.Config) { c.ConflictPolicy = "merge" }},
		{name: "postgres without database", user: "alice", cfg: func(c *config.Config) {
			c.Share = config.ShareConfig{Backend: config.ShareBackendPostgres, DatabaseURL: "postgres://localhost/s3box"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			_, err := session.New(cfg, tt.user, s3svctest.New("files"), nil, slog.New(slog.DiscardHandler))
			assert.ErrorIs(t, err, config.ErrConfiguration)
		})
	}
}

func TestPrepareCreatesBucket(t *testing.T) {
	fake := s3svctest.New("files")
	fake.SetBucketExists(false)
	s := newSession(t, fake, "alice")

	require.NoError(t, s.Prepare(context.Background()))
	assert.Equal(t, 1, fake.Calls("CreateBucket"))
	assert.Equal(t, "eu-west-1", fake.LocationConstraint)

	require.NoError(t, s.Prepare(context.Background()))
	assert.Equal(t, 1, fake.Calls("CreateBucket"))
}

func TestSessionAccessors(t *testing.T) {
	s := newSession(t, s3svctest.New("files"), " alice ")
	assert.Equal(t, "alice", s.Namespace())
	assert.Equal(t, "alice", s.Engine().Namespace())
	assert.Equal(t, transfer.PolicyOverwrite, s.Engine().Policy())
	assert.Equal(t, "files", s.S3().BucketName())
	assert.Equal(t, "files", s.Config().Bucket)
	assert.False(t, s.HasHistory())
	assert.Len(t, s.Monitors(), 1)

	_, err := s.History(context.Background(), 10)
	assert.ErrorIs(t, err, session.ErrNoHistory)
}

func TestShareAndRedeem(t *testing.T) {
	ctx := context.Background()
	fake := s3svctest.New("files")
	alice := newSession(t, fake, "alice")
	bob := newSession(t, fake, "bob")

	src := t.TempDir()
	docs := filepath.Join(src, "docs")
	require.NoError(t, os.MkdirAll(filepath.Join(docs, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "sub", "b.txt"), []byte("beta"), 0o644))

	res, err := alice.Execute(ctx, transfer.Request{Kind: transfer.KindUploadDir, LocalPath: docs})
	require.NoError(t, err)
	require.True(t, res.OK(), res.Summary())
	assert.Equal(t, 2, res.Succeeded)

	share, err := alice.Sharing().Share(ctx, "alice/docs", 0)
	require.NoError(t, err)

	dest := t.TempDir()
	redeemed, res, err := bob.Redeem(ctx, share.Code, dest)
	require.NoError(t, err)
	assert.Equal(t, "alice/docs/", redeemed.Path)
	require.True(t, res.OK(), res.Summary())

	data, err := os.ReadFile(filepath.Join(dest, "docs", "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "beta", string(data))

	_, _, err = bob.Redeem(ctx, "ZZZZZZ", dest)
	assert.ErrorIs(t, err, sharing.ErrCodeNotFound)
}

func TestResolve(t *testing.T) {
	fake := s3svctest.New("files")
	fake.Put("alice/docs/a.txt", []byte("a"))
	s := newSession(t, fake, "alice")

	tests := []struct {
		rel        string
		wantKey    string
		wantFolder bool
		wantErr    bool
	}{
		{rel: "docs/a.txt", wantKey: "alice/docs/a.txt"},
		{rel: "docs", wantKey: "alice/docs/", wantFolder: true},
		{rel: "docs/", wantKey: "alice/docs/", wantFolder: true},
		{rel: "/docs/a.txt", wantKey: "alice/docs/a.txt"},
		{rel: "typo.txt", wantKey: "alice/typo.txt"},
		{rel: "docs/a.txt/more", wantKey: "alice/docs/a.txt/more"},
		{rel: "../bob/a.txt", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			key, folder, err := s.Resolve(context.Background(), tt.rel)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantFolder, folder)
		})
	}
}

func TestMissingPathIsReportedNotFound(t *testing.T) {
	ctx := context.Background()
	fake := s3svctest.New("files")
	fake.Put("alice/docs/a.txt", []byte("a"))
	s := newSession(t, fake, "alice")

	key, folder, err := s.Resolve(ctx, "typo.txt")
	require.NoError(t, err)
	require.False(t, folder)

	res, err := s.Execute(ctx, transfer.Request{Kind: transfer.KindDelete, RemotePath: key})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Outcomes, 1)
	assert.ErrorIs(t, res.Outcomes[0].Err, s3svc.ErrNotFound)
	assert.Equal(t, 0, fake.Calls("DeleteObject"))

	dest := t.TempDir()
	res, err = s.Execute(ctx, transfer.Request{Kind: transfer.KindDownloadFile, LocalPath: dest, RemotePath: key})
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Outcomes, 1)
	assert.ErrorIs(t, res.Outcomes[0].Err, s3svc.ErrNotFound)
	_, err = os.Stat(filepath.Join(dest, "typo.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
