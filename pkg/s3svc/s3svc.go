// Package s3svc is the remote object gateway: thin synchronous operations
// over one S3 bucket, mapped one to one onto the S3 API.
package s3svc

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sgaunet/s3box/pkg/config"
)

// S3API is the subset of the S3 client used by the gateway.
// It is satisfied by *s3.Client and by the in-memory fake of s3svctest.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// Service is the struct for the S3 service
type Service struct {
	bucket      string
	region      string
	awsS3Client S3API
	log         *slog.Logger
}

// NewS3Svc creates a new S3 service bound to the bucket of cfg.
// By default the logger is set to write to /dev/null
func NewS3Svc(cfg config.Config, client S3API) *Service {
	return &Service{
		bucket:      cfg.Bucket,
		region:      cfg.S3Region,
		awsS3Client: client,
		log:         slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets the logger
func (s *Service) SetLogger(log *slog.Logger) {
	s.log = log
}

// BucketName returns the bucket the service operates on.
func (s *Service) BucketName() string {
	return s.bucket
}
