package source

import (
	"context"
	"errors"
	"io"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GcpStorageBackend is a Backend for a YAML document stored as an object in
// a GCS bucket.
type GcpStorageBackend struct {
	BucketName    string          // Name of the GCS bucket
	ObjectName    string          // Name of the YAML file within the GCS bucket
	Client        *storage.Client // GCS client instance, created lazily when nil
	ClientOptions []option.ClientOption
	clientOnce    sync.Once // Ensures client is initialized only once
	clientInitErr error     // Stores error from client initialization
}

// NewGcpStorageRepository creates a DocumentStore for a GCS object. When
// client is nil one is created on first use with opts.
func NewGcpStorageRepository(name, bucket, object string, client *storage.Client, opts ...option.ClientOption) *DocumentStore {
	return NewDocumentStore(name, &GcpStorageBackend{
		BucketName:    bucket,
		ObjectName:    object,
		Client:        client,
		ClientOptions: opts,
	})
}

// Kind returns "gcs".
func (g *GcpStorageBackend) Kind() string {
	return "gcs"
}

// object creates the client on first use. The client outlives the call that
// creates it, so it does not inherit that call's cancellation.
func (g *GcpStorageBackend) object(ctx context.Context) (*storage.ObjectHandle, error) {
	g.clientOnce.Do(func() {
		if g.Client != nil {
			return
		}
		g.Client, g.clientInitErr = storage.NewClient(context.WithoutCancel(ctx), g.ClientOptions...)
	})
	if g.clientInitErr != nil {
		return nil, g.clientInitErr
	}
	return g.Client.Bucket(g.BucketName).Object(g.ObjectName), nil
}

// Read downloads the object. A missing object reads as an empty document.
func (g *GcpStorageBackend) Read(ctx context.Context) ([]byte, error) {
	obj, err := g.object(ctx)
	if err != nil {
		return nil, err
	}

	reader, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return []byte{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// Write uploads the document, replacing the object.
func (g *GcpStorageBackend) Write(ctx context.Context, data []byte) error {
	obj, err := g.object(ctx)
	if err != nil {
		return err
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/yaml"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
