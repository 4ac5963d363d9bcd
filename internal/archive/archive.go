// Package archive stores raw inbound webhook payloads so a reply that fails
// reconciliation can be inspected or replayed later.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Archiver stores a payload and returns the key it was stored under.
type Archiver interface {
	Archive(ctx context.Context, kind string, payload []byte) (string, error)
}

// Noop stores nothing.
type Noop struct{}

func (Noop) Archive(context.Context, string, []byte) (string, error) { return "", nil }

// S3API is the subset of the S3 client the archiver calls.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes payloads to <prefix><kind>/YYYY/MM/DD/<uuid>.json.
type S3Archiver struct {
	client S3API
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Archiver creates an archiver for bucket.
func NewS3Archiver(client S3API, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// Archive uploads payload.
func (a *S3Archiver) Archive(ctx context.Context, kind string, payload []byte) (string, error) {
	key := a.prefix + path.Join(kind, a.now().UTC().Format("2006/01/02"), uuid.NewString()+".json")
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("archive %s to s3://%s: %w", kind, a.bucket, err)
	}
	return key, nil
}
