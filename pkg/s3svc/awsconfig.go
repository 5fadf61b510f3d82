package s3svc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sgaunet/s3box/pkg/config"
)

// GetAwsConfig returns an aws.Config
//
// Credentials are resolved in this order: static keys of the configuration,
// SSO profile, then the default chain (environment, shared files, IMDS).
func GetAwsConfig(ctx context.Context, cfg config.Config, log *slog.Logger) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}

	switch {
	case cfg.S3accessKey != "" && cfg.S3secretKey != "":
		log.Debug("Use static credentials")
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3accessKey, cfg.S3secretKey, "")))
	case cfg.SsoAwsProfile != "":
		log.Debug("Try to use SSO profile", slog.String("profile", cfg.SsoAwsProfile))
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.SsoAwsProfile))
	default:
		log.Debug("Use default credentials chain")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.Error("Error loading aws config", slog.String("error", err.Error()))
		return awsCfg, fmt.Errorf("GetAwsConfig: error loading aws config: %w", err)
	}
	return awsCfg, nil
}

// NewS3Client builds the S3 client described by cfg.
// A custom endpoint (MinIO, Ceph, ...) is honoured with path style addressing
// when forcepathstyle is set.
func NewS3Client(ctx context.Context, cfg config.Config, log *slog.Logger) (*s3.Client, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	awsCfg, err := GetAwsConfig(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3endpoint != "" {
			log.Debug("Use S3 endpoint", slog.String("endpoint", cfg.S3endpoint))
			o.BaseEndpoint = aws.String(cfg.S3endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}
