package storage

import (
	"context"
	"fmt"
	"strings"

	"sitesmith/internal/logging"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3TreeStore commits trees as objects under drafts/<publicID>/.
type S3TreeStore struct {
	client *s3.Client
	bucket string
}

// NewS3TreeStore creates an S3-backed tree store. Credentials come from the
// default chain; an explicit key pair overrides it when provided.
func NewS3TreeStore(ctx context.Context, bucket, region, accessKey, secretKey string) (*S3TreeStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3TreeStore{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// CommitTree implements TreeStore. Existing objects under the draft prefix
// are removed first so stale files from a previous run never linger.
func (s *S3TreeStore) CommitTree(ctx context.Context, draftID uint, publicID string, files map[string]string) error {
	if len(files) == 0 {
		return fmt.Errorf("refusing to commit empty tree for draft %d", draftID)
	}

	prefix := fmt.Sprintf("drafts/%s/", publicID)
	if err := s.deletePrefix(ctx, prefix); err != nil {
		logging.S().Warnw("failed to clear previous tree, overwriting in place", "prefix", prefix, "error", err)
	}

	for path, content := range files {
		key := prefix + strings.TrimPrefix(path, "/")
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        strings.NewReader(content),
			ContentType: aws.String(contentTypeFor(path)),
		})
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}
	}

	return nil
}

func (s *S3TreeStore) deletePrefix(ctx context.Context, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}
		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".html"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(path, ".css"):
		return "text/css; charset=utf-8"
	case strings.HasSuffix(path, ".js"), strings.HasSuffix(path, ".jsx"):
		return "application/javascript; charset=utf-8"
	case strings.HasSuffix(path, ".json"):
		return "application/json"
	case strings.HasSuffix(path, ".svg"):
		return "image/svg+xml"
	default:
		return "text/plain; charset=utf-8"
	}
}
