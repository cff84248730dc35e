package source

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/sardine-ai/configconsole/model"
)

// memoryBackend is a thread-safe in-memory Backend for testing
type memoryBackend struct {
	mu         sync.RWMutex
	data       []byte
	writes     int
	readError  error
	writeError error
}

func (m *memoryBackend) Read(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.readError != nil {
		return nil, m.readError
	}
	return m.data, nil
}

func (m *memoryBackend) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	m.data = data
	m.writes++
	return nil
}

func (m *memoryBackend) Kind() string {
	return "memory"
}

const testDocument = `values:
  - template: t1
    service: web
    key: port
    value: "8080"
  - template: t1
    service: ""
    key: env
    value: prod
  - template: t2
    service: db
    key: host
    value: localhost
`

func newTestStore(t *testing.T) (*DocumentStore, *memoryBackend) {
	t.Helper()
	backend := &memoryBackend{data: []byte(testDocument)}
	store := NewDocumentStore("test", backend)
	if err := store.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	return store, backend
}

func TestDecodeValues(t *testing.T) {
	values, err := DecodeValues([]byte(testDocument))
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 3 {
		t.Fatalf("expected 3 values, got %d", len(values))
	}
	if values[0] != (model.ConfigValue{Template: "t1", Service: "web", Key: "port", Value: "8080"}) {
		t.Errorf("unexpected first value %+v", values[0])
	}

	empty, err := DecodeValues(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no values from empty document, got %d", len(empty))
	}

	_, err = DecodeValues([]byte("values:\n  - service: web\n    key: a\n"))
	if err == nil {
		t.Error("expected error for value without template")
	}

	_, err = DecodeValues([]byte("values: [unclosed"))
	if err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestEncodeValuesIsOrdered(t *testing.T) {
	raw, err := EncodeValues([]model.ConfigValue{
		{Template: "b", Key: "x"},
		{Template: "a", Service: "z", Key: "y"},
		{Template: "a", Service: "", Key: "z"},
	})
	if err != nil {
		t.Fatal(err)
	}
	values, err := DecodeValues(raw)
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for _, cv := range values {
		keys = append(keys, cv.Key)
	}
	if !reflect.DeepEqual(keys, []string{"z", "y", "x"}) {
		t.Errorf("unexpected order %v", keys)
	}
}

func TestDocumentStoreGetValues(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	values, err := store.GetValues(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	expected := []model.ConfigValue{
		{Template: "t1", Service: "", Key: "env", Value: "prod"},
		{Template: "t1", Service: "web", Key: "port", Value: "8080"},
	}
	if !reflect.DeepEqual(values, expected) {
		t.Errorf("expected %+v, got %+v", expected, values)
	}

	values, err = store.GetValues(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if values == nil || len(values) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", values)
	}
}

func TestDocumentStoreTemplatesAndExists(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	templates, err := store.Templates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(templates, []string{"t1", "t2"}) {
		t.Errorf("unexpected templates %v", templates)
	}

	ok, err := store.Exists(ctx, "t1", "web", "port")
	if err != nil || !ok {
		t.Errorf("expected t1/web/port to exist, got %v %v", ok, err)
	}
	ok, err = store.Exists(ctx, "t1", "", "port")
	if err != nil || ok {
		t.Errorf("expected t1//port to be absent, got %v %v", ok, err)
	}
}

func TestDocumentStoreSaveAndDelete(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()

	cv := model.ConfigValue{Template: "t1", Service: "web", Key: "port", Value: "9090"}
	if err := store.Save(ctx, cv); err != nil {
		t.Fatal(err)
	}
	if backend.writes != 1 {
		t.Errorf("expected 1 write, got %d", backend.writes)
	}
	if !strings.Contains(string(store.GetRawData()), "9090") {
		t.Error("raw data should contain the saved value")
	}

	// The persisted document must read back identically.
	reloaded := NewDocumentStore("reloaded", backend)
	if err := reloaded.Refresh(); err != nil {
		t.Fatal(err)
	}
	values, _ := reloaded.GetValues(ctx, "t1")
	if len(values) != 2 || values[1].Value != "9090" {
		t.Errorf("unexpected reloaded values %+v", values)
	}

	if err := store.DeleteValue(ctx, cv); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteValue(ctx, cv); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.Save(ctx, model.ConfigValue{Service: "web", Key: "a"}); err == nil {
		t.Error("expected error when saving without template")
	}
}

func TestDocumentStoreBulkDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.DeleteForService(ctx, "t1", ""); err != nil {
		t.Fatal(err)
	}
	values, _ := store.GetValues(ctx, "t1")
	if len(values) != 1 || values[0].Service != "web" {
		t.Errorf("expected only the web value to remain, got %+v", values)
	}

	if err := store.DeleteForTemplate(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	values, _ = store.GetValues(ctx, "t1")
	if len(values) != 0 {
		t.Errorf("expected no values, got %+v", values)
	}
	templates, _ := store.Templates(ctx)
	if !reflect.DeepEqual(templates, []string{"t2"}) {
		t.Errorf("unexpected templates %v", templates)
	}
}

func TestDocumentStoreWriteFailureKeepsSnapshot(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()
	backend.writeError = ErrReadOnly

	err := store.Save(ctx, model.ConfigValue{Template: "t1", Key: "new-key", Value: "x"})
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	ok, _ := store.Exists(ctx, "t1", "", "new-key")
	if ok {
		t.Error("failed write must not change the snapshot")
	}
}

func TestDocumentStoreRefreshErrorKeepsSnapshot(t *testing.T) {
	store, backend := newTestStore(t)
	backend.data = []byte("values: [broken")

	if err := store.Refresh(); err == nil {
		t.Fatal("expected refresh error")
	}
	values, _ := store.GetValues(context.Background(), "t1")
	if len(values) != 2 {
		t.Errorf("expected previous snapshot to survive, got %+v", values)
	}

	backend.readError = errors.New("boom")
	if err := store.Refresh(); err == nil {
		t.Error("expected read error")
	}
}

func TestDocumentStoreConcurrentSaves(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "k" + string(rune('a'+i))
			if err := store.Save(ctx, model.ConfigValue{Template: "t3", Key: key, Value: "v"}); err != nil {
				t.Errorf("save %s: %v", key, err)
			}
		}(i)
	}
	wg.Wait()

	values, _ := store.GetValues(ctx, "t3")
	if len(values) != 20 {
		t.Errorf("expected 20 values, got %d", len(values))
	}
	if backend.writes != 20 {
		t.Errorf("expected 20 writes, got %d", backend.writes)
	}
}

// pausingBackend blocks the next Read after it has loaded the document until
// release is closed.
type pausingBackend struct {
	*memoryBackend
	paused  chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *pausingBackend) Read(ctx context.Context) ([]byte, error) {
	data, err := p.memoryBackend.Read(ctx)
	p.once.Do(func() {
		close(p.paused)
		<-p.release
	})
	return data, err
}

func TestDocumentStoreRefreshDoesNotLoseConcurrentSave(t *testing.T) {
	ctx := context.Background()
	backend := &memoryBackend{data: []byte("values:\n  - template: t1\n    key: a\n    value: \"1\"\n")}
	store := NewDocumentStore("test", backend)
	if err := store.Refresh(); err != nil {
		t.Fatal(err)
	}

	pausing := &pausingBackend{memoryBackend: backend, paused: make(chan struct{}), release: make(chan struct{})}
	store.Backend = pausing

	refreshed := make(chan error, 1)
	go func() { refreshed <- store.Refresh() }()
	<-pausing.paused

	saved := make(chan error, 1)
	go func() {
		saved <- store.Save(ctx, model.ConfigValue{Template: "t1", Key: "b", Value: "2"})
	}()

	close(pausing.release)
	if err := <-refreshed; err != nil {
		t.Fatal(err)
	}
	if err := <-saved; err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, model.ConfigValue{Template: "t1", Key: "c", Value: "3"}); err != nil {
		t.Fatal(err)
	}

	values, _ := store.GetValues(ctx, "t1")
	var keys []string
	for _, cv := range values {
		keys = append(keys, cv.Key)
	}
	if !reflect.DeepEqual(keys, []string{"a", "b", "c"}) {
		t.Errorf("expected keys [a b c], got %v", keys)
	}

	persisted, err := DecodeValues(backend.data)
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted) != 3 {
		t.Errorf("expected 3 persisted values, got %+v", persisted)
	}
}
