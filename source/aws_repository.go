package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// AwsS3Backend is a Backend for a YAML document stored as an object in an
// S3 bucket.
type AwsS3Backend struct {
	BucketName    string     // Name of the S3 bucket
	ObjectName    string     // Key of the YAML document within the bucket
	Client        *s3.Client // S3 client instance, created from the default config when nil
	clientOnce    sync.Once  // Ensures client is initialized only once
	clientInitErr error      // Stores error from client initialization
}

// NewAwsS3Repository creates a DocumentStore for an S3 object. A nil client
// is created lazily from the default AWS configuration.
func NewAwsS3Repository(name, bucket, object string, client *s3.Client) *DocumentStore {
	return NewDocumentStore(name, &AwsS3Backend{BucketName: bucket, ObjectName: object, Client: client})
}

// Kind returns "s3".
func (a *AwsS3Backend) Kind() string {
	return "s3"
}

func (a *AwsS3Backend) client(ctx context.Context) (*s3.Client, error) {
	// Thread-safe client initialization using sync.Once (only if client not pre-configured)
	a.clientOnce.Do(func() {
		if a.Client != nil {
			return
		}
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			a.clientInitErr = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}
		a.Client = s3.NewFromConfig(cfg)
	})
	return a.Client, a.clientInitErr
}

// Read downloads the object. A missing object reads as an empty document.
func (a *AwsS3Backend) Read(ctx context.Context) ([]byte, error) {
	client, err := a.client(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.BucketName),
		Key:    aws.String(a.ObjectName),
	})
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return []byte{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer result.Body.Close()

	return io.ReadAll(result.Body)
}

// Write uploads the document, replacing the object.
func (a *AwsS3Backend) Write(ctx context.Context, data []byte) error {
	client, err := a.client(ctx)
	if err != nil {
		return err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.BucketName),
		Key:         aws.String(a.ObjectName),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/yaml"),
	})
	return err
}
