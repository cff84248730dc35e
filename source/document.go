package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sardine-ai/configconsole/model"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Backend reads and writes the raw YAML document behind a DocumentStore.
// Read returns an empty slice when the document does not exist yet.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Kind() string
}

type document struct {
	Values []model.ConfigValue `yaml:"values"`
}

// DecodeValues parses a YAML document into config values.
func DecodeValues(data []byte) ([]model.ConfigValue, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	for _, cv := range doc.Values {
		if cv.Template == "" || cv.Key == "" {
			return nil, fmt.Errorf("invalid config value %q/%q/%q: template and key are required", cv.Template, cv.Service, cv.Key)
		}
	}
	return doc.Values, nil
}

// EncodeValues renders config values as a YAML document, ordered by
// template, service and key.
func EncodeValues(values []model.ConfigValue) ([]byte, error) {
	sorted := make([]model.ConfigValue, len(values))
	copy(sorted, values)
	sortValues(sorted)
	return yaml.Marshal(document{Values: sorted})
}

func sortValues(values []model.ConfigValue) {
	sort.SliceStable(values, func(i, j int) bool {
		a, b := values[i], values[j]
		if a.Template != b.Template {
			return a.Template < b.Template
		}
		if a.Service != b.Service {
			return a.Service < b.Service
		}
		return a.Key < b.Key
	})
}

// DocumentStore is a Repository that keeps every config value of a single
// YAML document in memory and persists mutations through a Backend.
type DocumentStore struct {
	sync.RWMutex
	Name    string
	Backend Backend

	// data is the current snapshot keyed by identity, rawData its YAML form.
	data    map[model.ValueID]model.ConfigValue
	rawData []byte

	// writeMu serializes read-modify-write cycles against the backend.
	writeMu sync.Mutex
}

// NewDocumentStore creates a DocumentStore for the given backend. The
// document is not read until Refresh is called.
func NewDocumentStore(name string, backend Backend) *DocumentStore {
	return &DocumentStore{
		Name:    name,
		Backend: backend,
		data:    map[model.ValueID]model.ConfigValue{},
	}
}

// GetName returns the name of the configuration source.
func (d *DocumentStore) GetName() string {
	return d.Name
}

// GetRawData returns the raw YAML of the last loaded or written document.
func (d *DocumentStore) GetRawData() []byte {
	d.RLock()
	defer d.RUnlock()
	return d.rawData
}

// Refresh reads the document from the backend and replaces the snapshot.
func (d *DocumentStore) Refresh() error {
	return d.refresh(context.Background())
}

// refresh holds writeMu so a read that started before a mutation cannot
// replace the snapshot that mutation wrote.
func (d *DocumentStore) refresh(ctx context.Context) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	raw, err := d.Backend.Read(ctx)
	if err != nil {
		logrus.WithField("repository", d.Name).Debug("error reading document")
		return err
	}

	// Decode outside the lock so a broken document leaves the snapshot intact.
	values, err := DecodeValues(raw)
	if err != nil {
		logrus.WithField("repository", d.Name).Debug("error unmarshalling document")
		return err
	}

	data := make(map[model.ValueID]model.ConfigValue, len(values))
	for _, cv := range values {
		data[cv.ID()] = cv
	}

	d.Lock()
	d.data = data
	d.rawData = raw
	d.Unlock()
	return nil
}

// GetValues returns all values of a template ordered by service and key.
func (d *DocumentStore) GetValues(_ context.Context, template string) ([]model.ConfigValue, error) {
	d.RLock()
	defer d.RUnlock()
	values := make([]model.ConfigValue, 0)
	for _, cv := range d.data {
		if cv.Template == template {
			values = append(values, cv)
		}
	}
	sortValues(values)
	return values, nil
}

// Exists reports whether a value with the given identity is present.
func (d *DocumentStore) Exists(_ context.Context, template, service, key string) (bool, error) {
	d.RLock()
	defer d.RUnlock()
	_, ok := d.data[model.ValueID{Template: template, Service: service, Key: key}]
	return ok, nil
}

// Templates returns the sorted distinct template names.
func (d *DocumentStore) Templates(_ context.Context) ([]string, error) {
	d.RLock()
	defer d.RUnlock()
	seen := map[string]struct{}{}
	templates := make([]string, 0)
	for _, cv := range d.data {
		if _, ok := seen[cv.Template]; ok {
			continue
		}
		seen[cv.Template] = struct{}{}
		templates = append(templates, cv.Template)
	}
	sort.Strings(templates)
	return templates, nil
}

// Save inserts or replaces a value.
func (d *DocumentStore) Save(ctx context.Context, cv model.ConfigValue) error {
	if cv.Template == "" || cv.Key == "" {
		return fmt.Errorf("invalid config value %q/%q/%q: template and key are required", cv.Template, cv.Service, cv.Key)
	}
	return d.mutate(ctx, func(data map[model.ValueID]model.ConfigValue) (bool, error) {
		data[cv.ID()] = cv
		return true, nil
	})
}

// DeleteValue removes a single value. Missing values yield ErrNotFound.
func (d *DocumentStore) DeleteValue(ctx context.Context, cv model.ConfigValue) error {
	return d.mutate(ctx, func(data map[model.ValueID]model.ConfigValue) (bool, error) {
		if _, ok := data[cv.ID()]; !ok {
			return false, ErrNotFound
		}
		delete(data, cv.ID())
		return true, nil
	})
}

// DeleteForTemplate removes every value of a template.
func (d *DocumentStore) DeleteForTemplate(ctx context.Context, template string) error {
	return d.deleteWhere(ctx, func(cv model.ConfigValue) bool {
		return cv.Template == template
	})
}

// DeleteForService removes every value of a service within a template.
func (d *DocumentStore) DeleteForService(ctx context.Context, template, service string) error {
	return d.deleteWhere(ctx, func(cv model.ConfigValue) bool {
		return cv.Template == template && cv.Service == service
	})
}

func (d *DocumentStore) deleteWhere(ctx context.Context, match func(model.ConfigValue) bool) error {
	return d.mutate(ctx, func(data map[model.ValueID]model.ConfigValue) (bool, error) {
		changed := false
		for id, cv := range data {
			if match(cv) {
				delete(data, id)
				changed = true
			}
		}
		return changed, nil
	})
}

// mutate applies fn to a copy of the snapshot, writes the result through the
// backend and only then swaps it in.
func (d *DocumentStore) mutate(ctx context.Context, fn func(map[model.ValueID]model.ConfigValue) (bool, error)) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.RLock()
	data := make(map[model.ValueID]model.ConfigValue, len(d.data))
	for id, cv := range d.data {
		data[id] = cv
	}
	d.RUnlock()

	changed, err := fn(data)
	if err != nil || !changed {
		return err
	}

	values := make([]model.ConfigValue, 0, len(data))
	for _, cv := range data {
		values = append(values, cv)
	}
	raw, err := EncodeValues(values)
	if err != nil {
		return err
	}
	if err := d.Backend.Write(ctx, raw); err != nil {
		logrus.WithError(err).WithField("repository", d.Name).Error("error writing document")
		return err
	}

	d.Lock()
	d.data = data
	d.rawData = raw
	d.Unlock()
	return nil
}
