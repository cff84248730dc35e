package source

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/sardine-ai/configconsole/model"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS config_values (
	template TEXT NOT NULL,
	service  TEXT NOT NULL DEFAULT '',
	key      TEXT NOT NULL,
	value    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (template, service, key)
)`

// SQLStore is a Repository persisting config values in a SQLite database.
type SQLStore struct {
	Name string
	db   *sql.DB

	mu      sync.RWMutex
	rawData []byte
}

// NewSQLStore opens (and if needed creates) the SQLite database at dsn.
// Use ":memory:" for a throwaway database.
func NewSQLStore(name, dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLStore{Name: name, db: db}, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// GetName returns the name of the configuration source.
func (s *SQLStore) GetName() string {
	return s.Name
}

// Refresh exports the table into the raw YAML document.
func (s *SQLStore) Refresh() error {
	ctx := context.Background()
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	values, err := s.query(ctx, `SELECT template, service, key, value FROM config_values`)
	if err != nil {
		return err
	}
	raw, err := EncodeValues(values)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.rawData = raw
	s.mu.Unlock()
	return nil
}

// GetRawData returns the YAML export from the last Refresh.
func (s *SQLStore) GetRawData() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rawData
}

// GetValues returns all values of a template ordered by service and key.
func (s *SQLStore) GetValues(ctx context.Context, template string) ([]model.ConfigValue, error) {
	return s.query(ctx, `SELECT template, service, key, value FROM config_values
		WHERE template = ? ORDER BY service, key`, template)
}

// Exists reports whether a value with the given identity is present.
func (s *SQLStore) Exists(ctx context.Context, template, service, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM config_values
		WHERE template = ? AND service = ? AND key = ?`, template, service, key).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Save inserts or replaces a value.
func (s *SQLStore) Save(ctx context.Context, cv model.ConfigValue) error {
	if cv.Template == "" || cv.Key == "" {
		return fmt.Errorf("invalid config value %q/%q/%q: template and key are required", cv.Template, cv.Service, cv.Key)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO config_values (template, service, key, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (template, service, key) DO UPDATE SET value = excluded.value`,
		cv.Template, cv.Service, cv.Key, cv.Value)
	return err
}

// DeleteValue removes a single value. Missing values yield ErrNotFound.
func (s *SQLStore) DeleteValue(ctx context.Context, cv model.ConfigValue) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM config_values
		WHERE template = ? AND service = ? AND key = ?`, cv.Template, cv.Service, cv.Key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteForTemplate removes every value of a template.
func (s *SQLStore) DeleteForTemplate(ctx context.Context, template string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM config_values WHERE template = ?`, template)
	return err
}

// DeleteForService removes every value of a service within a template.
func (s *SQLStore) DeleteForService(ctx context.Context, template, service string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM config_values WHERE template = ? AND service = ?`, template, service)
	return err
}

// Templates returns the sorted distinct template names.
func (s *SQLStore) Templates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT template FROM config_values ORDER BY template`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) ([]model.ConfigValue, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		logrus.WithError(err).WithField("repository", s.Name).Debug("error querying config values")
		return nil, err
	}
	defer rows.Close()

	values := make([]model.ConfigValue, 0)
	for rows.Next() {
		var cv model.ConfigValue
		if err := rows.Scan(&cv.Template, &cv.Service, &cv.Key, &cv.Value); err != nil {
			return nil, err
		}
		values = append(values, cv)
	}
	return values, rows.Err()
}
