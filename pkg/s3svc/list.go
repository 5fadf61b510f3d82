package s3svc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sgaunet/s3box/pkg/dto"
	"github.com/sgaunet/s3box/pkg/pathmap"
)

// Pager is a lazy sequence of listing pages.
// A page that fails can be requested again: the position only moves forward
// on success. Callers must exhaust the pager before treating a prefix as
// completely listed.
type Pager interface {
	HasMorePages() bool
	NextPage(ctx context.Context) ([]dto.S3Object, error)
}

type objectPager struct {
	prefix    string
	paginator *s3.ListObjectsV2Paginator
	log       *slog.Logger
	page      int
}

func (p *objectPager) HasMorePages() bool {
	return p.paginator.HasMorePages()
}

func (p *objectPager) NextPage(ctx context.Context) ([]dto.S3Object, error) {
	out, err := p.paginator.NextPage(ctx)
	if err != nil {
		p.log.Warn("listing page failed",
			slog.String("prefix", p.prefix),
			slog.Int("page", p.page),
			slog.String("error", err.Error()))
		return nil, classify("NextPage", err)
	}
	p.page++
	result := make([]dto.S3Object, 0, len(out.Contents))
	for _, obj := range out.Contents {
		result = append(result, toS3Object(obj))
	}
	return result, nil
}

// Paginate returns a pager over every key starting with prefix, recursively.
func (s *Service) Paginate(prefix string) Pager {
	return &objectPager{
		prefix: prefix,
		paginator: s3.NewListObjectsV2Paginator(s.awsS3Client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(prefix),
		}),
		log: s.log,
	}
}

// ListAll exhausts the listing of prefix.
func (s *Service) ListAll(ctx context.Context, prefix string) ([]dto.S3Object, error) {
	result := []dto.S3Object{}
	pager := s.Paginate(prefix)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ListAll: %w", err)
		}
		result = append(result, page...)
	}
	return result, nil
}

// PrefixExists reports whether at least one key starts with prefix.
// Only one key is requested.
func (s *Service) PrefixExists(ctx context.Context, prefix string) (bool, error) {
	out, err := s.awsS3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, classify("PrefixExists", err)
	}
	return len(out.Contents) > 0, nil
}

// ListFolder returns the direct children of the folder prefix: sub folders
// first, then files. The folder marker object itself is omitted.
func (s *Service) ListFolder(ctx context.Context, prefix string) ([]dto.S3Object, error) {
	var delimiter = "/"
	folders := []dto.S3Object{}
	files := []dto.S3Object{}

	paginator := s3.NewListObjectsV2Paginator(s.awsS3Client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String(delimiter),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("ListFolder", err)
		}
		for _, p := range page.CommonPrefixes {
			key := aws.ToString(p.Prefix)
			folders = append(folders, dto.S3Object{
				Key:      key,
				Name:     pathmap.BaseName(key),
				IsFolder: true,
			})
		}
		for _, obj := range page.Contents {
			if aws.ToString(obj.Key) == prefix {
				continue
			}
			files = append(files, toS3Object(obj))
		}
	}
	s.log.Debug("ListFolder",
		slog.String("prefix", prefix),
		slog.Int("folders", len(folders)),
		slog.Int("files", len(files)))
	return append(folders, files...), nil
}

func toS3Object(obj types.Object) dto.S3Object {
	key := aws.ToString(obj.Key)
	return dto.S3Object{
		Key:          key,
		Name:         pathmap.BaseName(key),
		ETag:         aws.ToString(obj.ETag),
		LastModified: aws.ToTime(obj.LastModified),
		Size:         aws.ToInt64(obj.Size),
		StorageClass: string(obj.StorageClass),
		IsFolder:     strings.HasSuffix(key, "/"),
	}
}
