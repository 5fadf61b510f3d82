package s3svc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sgaunet/s3box/pkg/dto"
	"github.com/sgaunet/s3box/pkg/pathmap"
)

// Head returns the metadata of one object, or ErrNotFound.
func (s *Service) Head(ctx context.Context, key string) (dto.S3Object, error) {
	o, err := s.awsS3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return dto.S3Object{}, classify("Head", err)
	}
	return dto.S3Object{
		Key:          key,
		Name:         pathmap.BaseName(key),
		ETag:         aws.ToString(o.ETag),
		LastModified: aws.ToTime(o.LastModified),
		Size:         aws.ToInt64(o.ContentLength),
		StorageClass: string(o.StorageClass),
	}, nil
}

// Exists reports whether key exists. Errors other than not found are returned.
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Head(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Download streams the content of key into w and returns the number of bytes written.
func (s *Service) Download(ctx context.Context, key string, w io.Writer) (int64, error) {
	o, err := s.awsS3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, classify("Download", err)
	}
	defer o.Body.Close() //nolint:errcheck

	n, err := io.Copy(w, o.Body)
	if err != nil {
		return n, fmt.Errorf("Download: error reading %s: %w: %w", key, ErrRemoteUnavailable, err)
	}
	s.log.Debug("Download completed", slog.String("key", key), slog.Int64("size", n))
	return n, nil
}

// GetObject returns the whole content of key.
func (s *Service) GetObject(ctx context.Context, key string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := s.Download(ctx, key, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PutObject stores data under key.
func (s *Service) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	return s.UploadObject(ctx, key, bytes.NewReader(data), contentType, int64(len(data)))
}

// UploadObject uploads a single object to S3.
// Parameters:
//   - ctx: Context for the request
//   - key: S3 object key (full path including filename)
//   - body: io.Reader containing the file data
//   - contentType: MIME type of the file (e.g., "image/jpeg", "application/pdf")
//   - size: Size of the file in bytes
func (s *Service) UploadObject(
	ctx context.Context,
	key string,
	body io.Reader,
	contentType string,
	size int64,
) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.awsS3Client.PutObject(ctx, input); err != nil {
		return classify("UploadObject", err)
	}

	s.log.Debug("UploadObject completed",
		slog.String("key", key),
		slog.String("contentType", contentType),
		slog.Int64("size", size))
	return nil
}

// DeleteObject deletes a single object from S3.
// Deleting a missing key is not an error.
func (s *Service) DeleteObject(ctx context.Context, key string) error {
	_, err := s.awsS3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		err = classify("DeleteObject", err)
		if errors.Is(err, ErrNotFound) {
			s.log.Debug("DeleteObject: key already absent", slog.String("key", key))
			return nil
		}
		return err
	}
	s.log.Debug("DeleteObject completed", slog.String("key", key))
	return nil
}
