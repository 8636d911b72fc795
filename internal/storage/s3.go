package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/complyscan/complyscan/internal/logger"
)

// S3Publisher uploads artifacts with PutObject. PutObject overwrites by
// key, which gives the idempotency the retry policy relies on.
type S3Publisher struct {
	Client *s3.Client
	Bucket string
	Region string
}

func NewS3Publisher(client *s3.Client, bucket, region string) *S3Publisher {
	return &S3Publisher{Client: client, Bucket: bucket, Region: region}
}

func (p *S3Publisher) Publish(ctx context.Context, scanID string, kind ArtifactKind, data []byte) (string, error) {
	start := time.Now()
	defer logger.Trace("Publish", start)

	key := fmt.Sprintf("scans/%s/%s", scanID, kind.fileName())
	_, err := p.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(kind.contentType()),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s for scan %s: %w", kind, scanID, err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.Bucket, p.Region, key), nil
}
