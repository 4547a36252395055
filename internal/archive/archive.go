// Package archive copies report artifacts to S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver stores the files produced by one report run.
type Archiver interface {
	// Archive uploads files and returns the object keys written.
	Archive(ctx context.Context, report, runID string, files []string) ([]string, error)
}

// ObjectPutter is the subset of the S3 client used here.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes artifacts under <prefix>/<report>/<run-id>/<file>.
type S3Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewS3Archiver creates an archiver for bucket. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Archiver(ctx context.Context, bucket, prefix, region, endpoint string) (*S3Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return NewS3ArchiverWithClient(s3.NewFromConfig(cfg, s3opts...), bucket, prefix), nil
}

// NewS3ArchiverWithClient wraps an existing client.
func NewS3ArchiverWithClient(client ObjectPutter, bucket, prefix string) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// ObjectKey returns the key a file is stored under.
func (a *S3Archiver) ObjectKey(report, runID, file string) string {
	return path.Join(a.prefix, report, runID, filepath.Base(file))
}

// Archive uploads every file. It stops at the first failure; keys
// uploaded before it are returned alongside the error.
func (a *S3Archiver) Archive(ctx context.Context, report, runID string, files []string) ([]string, error) {
	var keys []string
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return keys, fmt.Errorf("archive %s: %w", f, err)
		}

		key := a.ObjectKey(report, runID, f)
		_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType(f)),
		})
		if err != nil {
			return keys, fmt.Errorf("s3 put object %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		return "text/csv"
	case ".png":
		return "image/png"
	}
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Noop is used when no bucket is configured.
type Noop struct{}

func (Noop) Archive(context.Context, string, string, []string) ([]string, error) {
	return nil, nil
}
