package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/sardine-ai/configconsole/model"
)

var (
	// ErrNotFound is returned when a requested value or template does not exist.
	ErrNotFound = errors.New("config value not found")
	// ErrReadOnly is returned by backends that cannot persist changes.
	ErrReadOnly = errors.New("repository is read-only")
)

// Store is the remote contract for reading and mutating config values.
type Store interface {
	GetValues(ctx context.Context, template string) ([]model.ConfigValue, error)
	Exists(ctx context.Context, template, service, key string) (bool, error)
	Save(ctx context.Context, cv model.ConfigValue) error
	DeleteValue(ctx context.Context, cv model.ConfigValue) error
	DeleteForTemplate(ctx context.Context, template string) error
	DeleteForService(ctx context.Context, template, service string) error
	Templates(ctx context.Context) ([]string, error)
}

// Repository is a named Store that can be refreshed from its origin and
// served as a raw document.
type Repository interface {
	Store
	GetName() string
	Refresh() error
	GetRawData() []byte
}

// StatusError is returned by HTTPStore when the server answers with a
// non-success status code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}
