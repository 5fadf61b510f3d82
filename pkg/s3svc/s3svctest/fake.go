// Package s3svctest provides an in-memory S3 client for tests.
package s3svctest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const defaultPageSize = 1000

type object struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

type failure struct {
	err       error
	remaining int // 0 means every call
}

// Fake is an in-memory single bucket S3 client.
// It implements the methods of s3svc.S3API.
type Fake struct {
	mu sync.Mutex

	// PageSize caps the number of entries returned by one ListObjectsV2 call.
	PageSize int32
	// LocationConstraint records the constraint of the last CreateBucket call.
	LocationConstraint string

	bucket       string
	bucketExists bool
	objects      map[string]object
	failures     map[string]*failure
	calls        map[string]int
	clock        func() time.Time
}

// New returns a fake whose bucket already exists.
func New(bucket string) *Fake {
	return &Fake{
		bucket:       bucket,
		bucketExists: true,
		objects:      map[string]object{},
		failures:     map[string]*failure{},
		calls:        map[string]int{},
		clock:        time.Now,
	}
}

// SetBucketExists controls the answer of HeadBucket.
func (f *Fake) SetBucketExists(exists bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bucketExists = exists
}

// Put stores an object without counting a call.
func (f *Fake) Put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = object{data: append([]byte(nil), data...), lastModified: f.clock()}
}

// Object returns the content stored under key.
func (f *Fake) Object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[key]
	return o.data, ok
}

// ContentType returns the content type recorded for key.
func (f *Fake) ContentType(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key].contentType
}

// Keys returns the stored keys in lexical order.
func (f *Fake) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedKeys()
}

// FailOn makes every call of op on key return err. An empty key matches any
// key; for ListObjectsV2 the key is the requested prefix.
func (f *Fake) FailOn(op, key string, err error) {
	f.fail(op, key, err, 0)
}

// FailOnce makes the next call of op on key return err.
func (f *Fake) FailOnce(op, key string, err error) {
	f.fail(op, key, err, 1)
}

func (f *Fake) fail(op, key string, err error, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op+" "+key] = &failure{err: err, remaining: times}
}

// Calls returns how many times op was called.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of calls of every operation.
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// enter records the call and returns the injected error, if any.
// The caller must hold f.mu.
func (f *Fake) enter(ctx context.Context, op, key string) error {
	f.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, k := range []string{op + " " + key, op + " "} {
		fl, ok := f.failures[k]
		if !ok {
			continue
		}
		if fl.remaining > 0 {
			fl.remaining--
			if fl.remaining == 0 {
				delete(f.failures, k)
			}
		}
		return fl.err
	}
	return nil
}

func (f *Fake) sortedKeys() []string {
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ListObjectsV2 lists keys in lexical order, grouping common prefixes when a delimiter is given.
func (f *Fake) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	if err := f.enter(ctx, "ListObjectsV2", prefix); err != nil {
		return nil, err
	}

	type entry struct {
		name     string
		isPrefix bool
	}
	delimiter := aws.ToString(in.Delimiter)
	var entries []entry
	seen := map[string]bool{}
	for _, k := range f.sortedKeys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if delimiter != "" {
			rest := strings.TrimPrefix(k, prefix)
			if i := strings.Index(rest, delimiter); i >= 0 {
				cp := prefix + rest[:i+len(delimiter)]
				if !seen[cp] {
					seen[cp] = true
					entries = append(entries, entry{name: cp, isPrefix: true})
				}
				continue
			}
		}
		entries = append(entries, entry{name: k})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	start := 0
	if token := aws.ToString(in.ContinuationToken); token != "" {
		start = sort.Search(len(entries), func(i int) bool { return entries[i].name > token })
	}
	limit := int(aws.ToInt32(in.MaxKeys))
	if limit <= 0 {
		limit = int(f.PageSize)
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	end := min(start+limit, len(entries))

	out := &s3.ListObjectsV2Output{
		Name:   in.Bucket,
		Prefix: in.Prefix,
	}
	for _, e := range entries[start:end] {
		if e.isPrefix {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(e.name)})
			continue
		}
		o := f.objects[e.name]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(e.name),
			Size:         aws.Int64(int64(len(o.data))),
			LastModified: aws.Time(o.lastModified),
			ETag:         aws.String(fmt.Sprintf("\"%x\"", len(o.data))),
			StorageClass: types.ObjectStorageClassStandard,
		})
	}
	out.KeyCount = aws.Int32(int32(end - start)) //nolint:gosec
	out.IsTruncated = aws.Bool(end < len(entries))
	if end < len(entries) {
		out.NextContinuationToken = aws.String(entries[end-1].name)
	}
	return out, nil
}

// HeadObject returns types.NotFound for a missing key.
func (f *Fake) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	if err := f.enter(ctx, "HeadObject", key); err != nil {
		return nil, err
	}
	o, ok := f.objects[key]
	if !ok {
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(o.data))),
		ContentType:   aws.String(o.contentType),
		LastModified:  aws.Time(o.lastModified),
	}, nil
}

// GetObject returns types.NoSuchKey for a missing key.
func (f *Fake) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	if err := f.enter(ctx, "GetObject", key); err != nil {
		return nil, err
	}
	o, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(o.data)),
		ContentLength: aws.Int64(int64(len(o.data))),
		ContentType:   aws.String(o.contentType),
	}, nil
}

// PutObject stores the whole body.
func (f *Fake) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	if err := f.enter(ctx, "PutObject", key); err != nil {
		return nil, err
	}
	var data []byte
	if in.Body != nil {
		b, err := io.ReadAll(in.Body)
		if err != nil {
			return nil, err
		}
		data = b
	}
	f.objects[key] = object{data: data, contentType: aws.ToString(in.ContentType), lastModified: f.clock()}
	return &s3.PutObjectOutput{}, nil
}

// DeleteObject succeeds whether or not the key exists, like S3.
func (f *Fake) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	if err := f.enter(ctx, "DeleteObject", key); err != nil {
		return nil, err
	}
	delete(f.objects, key)
	return &s3.DeleteObjectOutput{}, nil
}

// HeadBucket returns types.NotFound until the bucket exists.
func (f *Fake) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "HeadBucket", aws.ToString(in.Bucket)); err != nil {
		return nil, err
	}
	if !f.bucketExists || aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	}
	return &s3.HeadBucketOutput{}, nil
}

// CreateBucket creates the bucket of the fake.
func (f *Fake) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "CreateBucket", aws.ToString(in.Bucket)); err != nil {
		return nil, err
	}
	if f.bucketExists && aws.ToString(in.Bucket) == f.bucket {
		return nil, &types.BucketAlreadyOwnedByYou{Message: aws.String("bucket already owned by you")}
	}
	f.LocationConstraint = ""
	if in.CreateBucketConfiguration != nil {
		f.LocationConstraint = string(in.CreateBucketConfiguration.LocationConstraint)
	}
	f.bucket = aws.ToString(in.Bucket)
	f.bucketExists = true
	return &s3.CreateBucketOutput{Location: aws.String("/" + f.bucket)}, nil
}

// ListBuckets returns the bucket of the fake once it exists.
func (f *Fake) ListBuckets(ctx context.Context, _ *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "ListBuckets", ""); err != nil {
		return nil, err
	}
	out := &s3.ListBucketsOutput{}
	if f.bucketExists {
		out.Buckets = append(out.Buckets, types.Bucket{Name: aws.String(f.bucket), CreationDate: aws.Time(f.clock())})
	}
	return out, nil
}
