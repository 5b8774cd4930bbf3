package objectstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Gateway implements Gateway on top of an S3-compatible endpoint.
type S3Gateway struct {
	client  *s3.Client
	presign *s3.PresignClient
}

// NewS3Gateway wraps the provided S3 client.
func NewS3Gateway(client *s3.Client) *S3Gateway {
	return &S3Gateway{
		client:  client,
		presign: s3.NewPresignClient(client),
	}
}

func (g *S3Gateway) PresignUpload(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if err := validateObjectRef(bucket, key); err != nil {
		return "", err
	}
	req, err := g.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign upload for %s: %w", key, err)
	}
	return req.URL, nil
}

func (g *S3Gateway) PresignDownload(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if err := validateObjectRef(bucket, key); err != nil {
		return "", err
	}
	req, err := g.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign download for %s: %w", key, err)
	}
	return req.URL, nil
}

func (g *S3Gateway) Download(ctx context.Context, bucket, key string, dst io.Writer) error {
	if err := validateObjectRef(bucket, key); err != nil {
		return err
	}
	resp, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("stream %s: %w", key, err)
	}
	return nil
}

func (g *S3Gateway) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	if err := validateObjectRef(bucket, key); err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := g.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (g *S3Gateway) Delete(ctx context.Context, bucket, key string) error {
	if err := validateObjectRef(bucket, key); err != nil {
		return err
	}
	if _, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
