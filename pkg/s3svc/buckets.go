package s3svc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sgaunet/s3box/pkg/dto"
)

// regionWithoutLocationConstraint is the only region that rejects an explicit LocationConstraint.
const regionWithoutLocationConstraint = "us-east-1"

// ListBuckets returns a list of all S3 buckets accessible with the current credentials.
func (s *Service) ListBuckets(ctx context.Context) ([]dto.Bucket, error) {
	output, err := s.awsS3Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		s.log.Error("Failed to list buckets", slog.String("error", err.Error()))
		return nil, classify("ListBuckets", err)
	}

	buckets := make([]dto.Bucket, 0, len(output.Buckets))
	for _, bucket := range output.Buckets {
		buckets = append(buckets, dto.Bucket{
			Name:         aws.ToString(bucket.Name),
			CreationDate: aws.ToTime(bucket.CreationDate),
		})
	}
	s.log.Debug("Listed buckets", slog.Int("count", len(buckets)))
	return buckets, nil
}

// VerifyConnection checks that the endpoint answers and accepts the credentials.
// Listing buckets is often forbidden to scoped keys: an AccessDenied answer
// still proves the credentials were recognised.
func (s *Service) VerifyConnection(ctx context.Context) error {
	_, err := s.ListBuckets(ctx)
	if err == nil || errors.Is(err, ErrAccessDenied) {
		return nil
	}
	return fmt.Errorf("VerifyConnection: %w", err)
}

// Ping checks that the bucket is reachable.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.awsS3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return classify("Ping", err)
}

// EnsureBucketExists creates the bucket when it does not exist yet.
// It is idempotent.
func (s *Service) EnsureBucketExists(ctx context.Context) error {
	err := s.Ping(ctx)
	switch {
	case err == nil:
		s.log.Debug("Bucket exists", slog.String("bucket", s.bucket))
		return nil
	case errors.Is(err, ErrAccessDenied):
		return fmt.Errorf("EnsureBucketExists: %w %q: %w", ErrBucketAccess, s.bucket, err)
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("EnsureBucketExists: %w", err)
	}

	s.log.Info("Creating bucket", slog.String("bucket", s.bucket), slog.String("region", s.region))
	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if s.region != "" && s.region != regionWithoutLocationConstraint {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	_, err = s.awsS3Client.CreateBucket(ctx, input)
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		var taken *types.BucketAlreadyExists
		if errors.As(err, &taken) {
			return fmt.Errorf("EnsureBucketExists: %w %q: name owned by another account: %w", ErrBucketAccess, s.bucket, err)
		}
		return classify("EnsureBucketExists", err)
	}
	return nil
}
