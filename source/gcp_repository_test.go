package source

import (
	"context"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/fullstorydev/emulators/storage/gcsemu"
	"github.com/sardine-ai/configconsole/model"
	"google.golang.org/api/option"
)

func TestGcpStorageRepository(t *testing.T) {
	// start an in-memory Storage test server (for unit tests)
	svr, err := gcsemu.NewServer("127.0.0.1:9023", gcsemu.Options{})
	if err != nil {
		t.Fatalf("Error starting in-memory storage server: %s", err.Error())
	}
	defer svr.Close()
	t.Setenv("STORAGE_EMULATOR_HOST", "http://127.0.0.1:9023")

	ctx := context.Background()
	client, err := storage.NewClient(ctx)
	if err != nil {
		t.Fatalf("Error creating storage client: %s", err.Error())
	}
	defer client.Close()

	if err := client.Bucket("test-bucket").Create(ctx, "test-project", nil); err != nil {
		t.Fatalf("Failed to create bucket: %v", err)
	}

	repo := NewGcpStorageRepository("gcs", "test-bucket", "values.yaml", client)
	if err := repo.Refresh(); err != nil {
		t.Fatalf("missing object should read as empty document, got %v", err)
	}

	if err := repo.Save(ctx, model.ConfigValue{Template: "t1", Key: "region", Value: "eu"}); err != nil {
		t.Fatal(err)
	}

	other := NewGcpStorageRepository("gcs", "test-bucket", "values.yaml", client)
	if err := other.Refresh(); err != nil {
		t.Fatal(err)
	}
	values, err := other.GetValues(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 1 || values[0].Value != "eu" {
		t.Errorf("unexpected values %+v", values)
	}

	// the raw document is served as written
	if len(other.GetRawData()) == 0 {
		t.Error("expected raw data after refresh")
	}
}

func TestGcpStorageLazyClientSurvivesCancelledCaller(t *testing.T) {
	svr, err := gcsemu.NewServer("127.0.0.1:9024", gcsemu.Options{})
	if err != nil {
		t.Fatalf("Error starting in-memory storage server: %s", err.Error())
	}
	defer svr.Close()
	t.Setenv("STORAGE_EMULATOR_HOST", "http://127.0.0.1:9024")

	ctx := context.Background()
	setup, err := storage.NewClient(ctx)
	if err != nil {
		t.Fatalf("Error creating storage client: %s", err.Error())
	}
	defer setup.Close()
	if err := setup.Bucket("lazy-bucket").Create(ctx, "test-project", nil); err != nil {
		t.Fatalf("Failed to create bucket: %v", err)
	}

	repo := NewGcpStorageRepository("gcs", "lazy-bucket", "values.yaml", nil, option.WithoutAuthentication())

	// the first use of the backend comes from a request that is already gone
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := repo.Save(cancelled, model.ConfigValue{Template: "t1", Key: "a", Value: "1"}); err == nil {
		t.Fatal("expected save with cancelled context to fail")
	}

	if err := repo.Save(ctx, model.ConfigValue{Template: "t1", Key: "b", Value: "2"}); err != nil {
		t.Fatalf("client created under a cancelled context must stay usable: %v", err)
	}
	if err := repo.Refresh(); err != nil {
		t.Fatal(err)
	}
	values, _ := repo.GetValues(ctx, "t1")
	if len(values) != 1 || values[0].Key != "b" {
		t.Errorf("unexpected values %+v", values)
	}
}
