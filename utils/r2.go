// utils/r2.go
package utils

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dima260208d-dot/kinetik-energy-project/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MediaStore signs direct browser uploads into an R2 bucket.
type MediaStore struct {
	presign    *s3.PresignClient
	bucket     string
	cdnBaseURL string
	ttl        time.Duration
}

func r2Endpoint(accountID string) string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
}

// NewMediaStore builds an R2 client from cfg. It does no network I/O.
func NewMediaStore(ctx context.Context, cfg config.R2) (*MediaStore, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("r2 is not configured")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(r2Endpoint(cfg.AccountID))
	})

	cdn := strings.TrimRight(cfg.CDNBaseURL, "/")
	if cdn == "" {
		cdn = r2Endpoint(cfg.AccountID) + "/" + cfg.Bucket
	}
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &MediaStore{
		presign:    s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		cdnBaseURL: cdn,
		ttl:        ttl,
	}, nil
}

// PresignUpload returns a PUT URL the client can upload key to directly.
func (m *MediaStore) PresignUpload(ctx context.Context, key, contentType string) (string, error) {
	req, err := m.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(m.ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return req.URL, nil
}

// PublicURL is where key is served once uploaded.
func (m *MediaStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", m.cdnBaseURL, strings.TrimLeft(key, "/"))
}
