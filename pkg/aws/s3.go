package aws

import (
	"context"
	"fmt"
	"io"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Object is an opened S3 object. Body streams the content and must be closed.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// S3Client wraps object reads and presigned uploads for one bucket family.
type S3Client struct {
	client    *s3.Client
	presigner *s3.PresignClient
}

// NewS3Client creates an S3 client from the AWS config. Path-style addressing
// is turned on when the config points at a custom endpoint (LocalStack).
func NewS3Client(cfg sdkaws.Config) *S3Client {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = UsesCustomEndpoint(cfg)
	})
	return &S3Client{
		client:    client,
		presigner: s3.NewPresignClient(client),
	}
}

// OpenObject starts a GetObject and returns the body without reading it.
func (c *S3Client) OpenObject(ctx context.Context, bucket, key string) (*Object, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object %s/%s: %w", bucket, key, err)
	}
	return &Object{
		Body:        out.Body,
		ContentType: sdkaws.ToString(out.ContentType),
		Size:        sdkaws.ToInt64(out.ContentLength),
	}, nil
}

// PresignPut generates a presigned PUT URL for bucket/key. The uploader must
// send the same Content-Type header that was signed.
func (c *S3Client) PresignPut(ctx context.Context, bucket, key, contentType string, expires time.Duration) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: sdkaws.String(contentType),
	}

	presigned, err := c.presigner.PresignPutObject(ctx, input, func(o *s3.PresignOptions) {
		o.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign put object: %w", err)
	}
	return presigned.URL, nil
}
