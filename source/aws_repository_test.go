package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sardine-ai/configconsole/model"
)

// fakeS3 serves path-style GetObject and PutObject requests from memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		_, _ = w.Write(data)
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.objects[key] = data
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func newFakeS3Client(url string) *s3.Client {
	return s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(url),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
	})
}

func TestAwsS3Repository(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	repo := NewAwsS3Repository("s3", "test-bucket", "config/values.yaml", newFakeS3Client(srv.URL))

	// The object does not exist yet.
	if err := repo.Refresh(); err != nil {
		t.Fatalf("missing object should read as empty document, got %v", err)
	}

	ctx := context.Background()
	if err := repo.Save(ctx, model.ConfigValue{Template: "t1", Service: "web", Key: "port", Value: "8080"}); err != nil {
		t.Fatal(err)
	}

	fake.mu.Lock()
	stored := string(fake.objects["test-bucket/config/values.yaml"])
	fake.mu.Unlock()
	if !strings.Contains(stored, "port") {
		t.Fatalf("expected object to contain the saved value, got %q", stored)
	}

	other := NewAwsS3Repository("s3", "test-bucket", "config/values.yaml", newFakeS3Client(srv.URL))
	if err := other.Refresh(); err != nil {
		t.Fatal(err)
	}
	ok, err := other.Exists(ctx, "t1", "web", "port")
	if err != nil || !ok {
		t.Errorf("expected value to be readable from S3, got %v %v", ok, err)
	}
	if other.Backend.Kind() != "s3" {
		t.Errorf("expected kind s3, got %q", other.Backend.Kind())
	}
}
