// Package s3svc_test tests the s3svc package functionality
package s3svc_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgaunet/s3box/pkg/config"
	"github.com/sgaunet/s3box/pkg/dto"
	"github.com/sgaunet/s3box/pkg/s3svc"
	"github.com/sgaunet/s3box/pkg/s3svc/s3svctest"
)

var errNetwork = errors.New("dial tcp: connection refused")

func newService(t *testing.T, region string) (*s3svc.Service, *s3svctest.Fake) {
	t.Helper()
	fake := s3svctest.New("test-bucket")
	svc := s3svc.NewS3Svc(config.Config{Bucket: "test-bucket", S3Region: region}, fake)
	svc.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, fake
}

func TestNewS3Svc(t *testing.T) {
	svc, _ := newService(t, "eu-west-1")
	assert.Equal(t, "test-bucket", svc.BucketName())
}

func TestEnsureBucketExists(t *testing.T) {
	tests := []struct {
		name           string
		region         string
		exists         bool
		headErr        error
		wantErr        error
		wantCreate     int
		wantConstraint string
	}{
		{name: "already exists", region: "eu-west-3", exists: true},
		{name: "created with constraint", region: "eu-west-3", wantCreate: 1, wantConstraint: "eu-west-3"},
		{name: "created in us-east-1", region: "us-east-1", wantCreate: 1},
		{
			name:    "forbidden",
			region:  "eu-west-3",
			exists:  true,
			headErr: &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"},
			wantErr: s3svc.ErrBucketAccess,
		},
		{
			name:    "network failure",
			region:  "eu-west-3",
			exists:  true,
			headErr: errNetwork,
			wantErr: s3svc.ErrRemoteUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, fake := newService(t, tt.region)
			fake.SetBucketExists(tt.exists)
			if tt.headErr != nil {
				fake.FailOn("HeadBucket", "", tt.headErr)
			}

			err := svc.EnsureBucketExists(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, fake.Calls("CreateBucket"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCreate, fake.Calls("CreateBucket"))
			assert.Equal(t, tt.wantConstraint, fake.LocationConstraint)

			require.NoError(t, svc.EnsureBucketExists(context.Background()), "must be idempotent")
			assert.Equal(t, tt.wantCreate, fake.Calls("CreateBucket"))
		})
	}
}

func TestVerifyConnection(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "listing allowed"},
		{name: "listing forbidden", err: &smithy.GenericAPIError{Code: "AccessDenied"}},
		{name: "bad credentials", err: &smithy.GenericAPIError{Code: "InvalidAccessKeyId"}, wantErr: s3svc.ErrRemoteUnavailable},
		{name: "unreachable", err: errNetwork, wantErr: s3svc.ErrRemoteUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, fake := newService(t, "eu-west-1")
			if tt.err != nil {
				fake.FailOn("ListBuckets", "", tt.err)
			}
			err := svc.VerifyConnection(context.Background())
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestObjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, fake := newService(t, "eu-west-1")

	require.NoError(t, svc.PutObject(ctx, "alice/a.txt", []byte("hello"), "text/plain"))
	assert.Equal(t, "text/plain", fake.ContentType("alice/a.txt"))

	data, err := svc.GetObject(ctx, "alice/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	obj, err := svc.Head(ctx, "alice/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), obj.Size)
	assert.Equal(t, "a.txt", obj.Name)

	ok, err := svc.Exists(ctx, "alice/a.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	var sb strings.Builder
	n, err := svc.Download(ctx, "alice/a.txt", &sb)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "hello", sb.String())
}

func TestMissingObject(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, "eu-west-1")

	_, err := svc.GetObject(ctx, "alice/missing.txt")
	assert.ErrorIs(t, err, s3svc.ErrNotFound)

	_, err = svc.Head(ctx, "alice/missing.txt")
	assert.ErrorIs(t, err, s3svc.ErrNotFound)

	ok, err := svc.Exists(ctx, "alice/missing.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, svc.DeleteObject(ctx, "alice/missing.txt"))
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no such key", err: &smithy.GenericAPIError{Code: "NoSuchKey"}, want: s3svc.ErrNotFound},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}, want: s3svc.ErrAccessDenied},
		{name: "throttled", err: &smithy.GenericAPIError{Code: "SlowDown"}, want: s3svc.ErrRemoteUnavailable},
		{name: "network", err: errNetwork, want: s3svc.ErrRemoteUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, fake := newService(t, "eu-west-1")
			fake.FailOn("PutObject", "alice/a.txt", tt.err)

			err := svc.PutObject(context.Background(), "alice/a.txt", []byte("x"), "")
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err, "the cause must stay reachable")
		})
	}
}

func TestDeleteObjectPropagatesFailures(t *testing.T) {
	svc, fake := newService(t, "eu-west-1")
	fake.Put("alice/a.txt", []byte("x"))
	fake.FailOn("DeleteObject", "alice/a.txt", &smithy.GenericAPIError{Code: "AccessDenied"})

	err := svc.DeleteObject(context.Background(), "alice/a.txt")
	assert.ErrorIs(t, err, s3svc.ErrAccessDenied)
}

func TestPaginateRetriesFailedPage(t *testing.T) {
	ctx := context.Background()
	svc, fake := newService(t, "eu-west-1")
	fake.PageSize = 2
	for _, k := range []string{"alice/1", "alice/2", "alice/3", "alice/4", "alice/5", "bob/1"} {
		fake.Put(k, []byte(k))
	}

	pager := svc.Paginate("alice/")
	require.True(t, pager.HasMorePages())
	first, err := pager.NextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice/1", "alice/2"}, keys(first))

	fake.FailOnce("ListObjectsV2", "alice/", errNetwork)
	_, err = pager.NextPage(ctx)
	require.ErrorIs(t, err, s3svc.ErrRemoteUnavailable)
	require.True(t, pager.HasMorePages(), "a failed page must not end the sequence")

	var rest []dto.S3Object
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		require.NoError(t, err)
		rest = append(rest, page...)
	}
	assert.Equal(t, []string{"alice/3", "alice/4", "alice/5"}, keys(rest))
}

func TestListAll(t *testing.T) {
	svc, fake := newService(t, "eu-west-1")
	fake.PageSize = 1
	fake.Put("alice/docs/a.txt", nil)
	fake.Put("alice/docs/sub/b.txt", nil)
	fake.Put("alice/other.txt", nil)

	objs, err := svc.ListAll(context.Background(), "alice/docs/")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice/docs/a.txt", "alice/docs/sub/b.txt"}, keys(objs))
	assert.Equal(t, 2, fake.Calls("ListObjectsV2"))
}

func TestListFolder(t *testing.T) {
	svc, fake := newService(t, "eu-west-1")
	fake.PageSize = 2
	fake.Put("alice/", nil)
	fake.Put("alice/a.txt", []byte("abc"))
	fake.Put("alice/docs/b.txt", nil)
	fake.Put("alice/docs/sub/c.txt", nil)
	fake.Put("alice/zz/", nil)
	fake.Put("bob/secret.txt", nil)

	objs, err := svc.ListFolder(context.Background(), "alice/")
	require.NoError(t, err)
	require.Len(t, objs, 3)

	assert.Equal(t, "alice/docs/", objs[0].Key)
	assert.Equal(t, "docs", objs[0].Name)
	assert.True(t, objs[0].IsFolder)
	assert.Equal(t, "alice/zz/", objs[1].Key)
	assert.True(t, objs[1].IsFolder)
	assert.Equal(t, "alice/a.txt", objs[2].Key)
	assert.Equal(t, int64(3), objs[2].Size)
	assert.False(t, objs[2].IsFolder)
}

func TestPrefixExists(t *testing.T) {
	svc, fake := newService(t, "eu-west-1")
	fake.Put("alice/docs/a.txt", nil)
	fake.Put("alice/docs/b.txt", nil)
	fake.Put("alice/empty/", nil)

	tests := []struct {
		prefix string
		want   bool
	}{
		{prefix: "alice/docs/", want: true},
		{prefix: "alice/empty/", want: true},
		{prefix: "alice/docs/a.txt/", want: false},
		{prefix: "alice/none/", want: false},
		{prefix: "bob/", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got, err := svc.PrefixExists(context.Background(), tt.prefix)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	fake.FailOn("ListObjectsV2", "alice/", errNetwork)
	_, err := svc.PrefixExists(context.Background(), "alice/")
	assert.ErrorIs(t, err, s3svc.ErrRemoteUnavailable)
}

func TestPing(t *testing.T) {
	svc, fake := newService(t, "eu-west-1")
	require.NoError(t, svc.Ping(context.Background()))

	fake.SetBucketExists(false)
	assert.ErrorIs(t, svc.Ping(context.Background()), s3svc.ErrNotFound)
}

func keys(objs []dto.S3Object) []string {
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.Key)
	}
	return out
}
