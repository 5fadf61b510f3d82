package scanner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgaunet/s3box/pkg/config"
	"github.com/sgaunet/s3box/pkg/s3svc"
	"github.com/sgaunet/s3box/pkg/s3svc/s3svctest"
	"github.com/sgaunet/s3box/pkg/scanner"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func relPaths(t *testing.T, root string, files []scanner.LocalFile) []string {
	t.Helper()
	out := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f.Path)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestScanLocal(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.txt"), "bb")
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "sub", "deep", "c.txt"), "ccc")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty", "nested"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(root, "a.txt"), filepath.Join(root, "link.txt")))
	require.NoError(t, os.Symlink(filepath.Join(root, "sub"), filepath.Join(root, "linkdir")))

	scan, err := scanner.NewService(nil).ScanLocal(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt", "sub/deep/c.txt"}, relPaths(t, root, scan.Files))
	assert.Equal(t, int64(1), scan.Files[0].Size)
	assert.Equal(t, int64(3), scan.Files[2].Size)
	assert.Equal(t, 2, scan.Ignored)
	assert.Empty(t, scan.Problems)
}

func TestScanLocalSymlinkedRoot(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	writeFile(t, filepath.Join(target, "x.txt"), "x")
	writeFile(t, filepath.Join(target, "sub", "y.txt"), "yy")
	require.NoError(t, os.Symlink(filepath.Join(target, "sub"), filepath.Join(target, "inner")))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	scan, err := scanner.NewService(nil).ScanLocal(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/y.txt", "x.txt"}, relPaths(t, link, scan.Files))
	assert.Equal(t, filepath.Join(link, "x.txt"), scan.Files[1].Path)
	assert.Equal(t, 1, scan.Ignored, "links below the root are not followed")
}

func TestScanLocalEmptyTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b", "c"), 0o755))

	scan, err := scanner.NewService(nil).ScanLocal(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, scan.Files)
}

func TestScanLocalUnreadableSubtree(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "locked", "secret.txt"), "s")
	writeFile(t, filepath.Join(root, "z.txt"), "z")
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	scan, err := scanner.NewService(nil).ScanLocal(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "z.txt"}, relPaths(t, root, scan.Files))
	require.Len(t, scan.Problems, 1)
	assert.Equal(t, locked, scan.Problems[0].Path)
}

func TestScanLocalRoot(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.txt")
	writeFile(t, file, "a")
	svc := scanner.NewService(nil)

	_, err := svc.ScanLocal(context.Background(), file)
	assert.ErrorIs(t, err, scanner.ErrNotDirectory)

	_, err = svc.ScanLocal(context.Background(), filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.ScanLocal(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanRemote(t *testing.T) {
	fake := s3svctest.New("bucket")
	fake.PageSize = 2
	for _, k := range []string{"alice/docs/a.txt", "alice/docs/b.txt", "alice/docs/sub/", "alice/docs/sub/c.txt", "alice/other.txt"} {
		fake.Put(k, []byte("x"))
	}
	gw := s3svc.NewS3Svc(config.Config{Bucket: "bucket"}, fake)

	objs, err := scanner.NewService(gw).ScanRemote(context.Background(), "alice/docs/")
	require.NoError(t, err)

	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{"alice/docs/a.txt", "alice/docs/b.txt", "alice/docs/sub/", "alice/docs/sub/c.txt"}, keys)
	assert.Equal(t, 2, fake.Calls("ListObjectsV2"))
}

func TestScanRemoteFailure(t *testing.T) {
	fake := s3svctest.New("bucket")
	fake.Put("alice/a.txt", nil)
	fake.FailOn("ListObjectsV2", "alice/", errors.New("connection reset"))
	gw := s3svc.NewS3Svc(config.Config{Bucket: "bucket"}, fake)

	_, err := scanner.NewService(gw).ScanRemote(context.Background(), "alice/")
	assert.ErrorIs(t, err, s3svc.ErrRemoteUnavailable)
}
