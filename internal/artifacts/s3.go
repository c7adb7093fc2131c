package artifacts

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultURLExpiry is how long presigned structure links stay valid.
const DefaultURLExpiry = 7 * 24 * time.Hour

// S3Config holds the bucket parameters. Credentials come from the default
// AWS chain unless AccessKeyID is set.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for S3-compatible stores
	PathStyle       bool
	URLExpiry       time.Duration
	AccessKeyID     string
	SecretAccessKey string
	HTTPClient      *http.Client // optional, replaces the SDK transport
}

// S3Publisher stores structures as objects in one bucket and hands out
// presigned GET URLs for them.
type S3Publisher struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

var _ Publisher = (*S3Publisher)(nil)

// NewS3Publisher builds an S3 client from cfg.
func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
	})

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	return &S3Publisher{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		expiry:  expiry,
	}, nil
}

// Publish uploads content under filename and returns a presigned GET URL.
func (p *S3Publisher) Publish(ctx context.Context, filename, content string) (string, error) {
	ctx, span := tracer.Start(ctx, "artifacts.s3.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("artifact.filename", filename),
		attribute.String("s3.bucket", p.bucket),
	)

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(filename),
		Body:        strings.NewReader(content),
		ContentType: aws.String(contentType(filename)),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "put object failed")
		return "", fmt.Errorf("put object %s: %w", filename, err)
	}

	out, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(filename),
	}, func(o *s3.PresignOptions) { o.Expires = p.expiry })
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", filename, err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("%w: %s", ErrNoURL, filename)
	}

	log.Debug().Str("bucket", p.bucket).Str("key", filename).Msg("📤 Structure published to S3")
	return out.URL, nil
}

func contentType(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".pdb"):
		return "chemical/x-pdb"
	case strings.HasSuffix(filename, ".mmcif"), strings.HasSuffix(filename, ".cif"):
		return "chemical/x-mmcif"
	}
	return "text/plain"
}
