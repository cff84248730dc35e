package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// FileBackend is a Backend for a YAML document stored on the local
// filesystem.
type FileBackend struct {
	Path string // File path of the YAML document
}

// NewFileRepository creates a DocumentStore backed by the YAML file at path.
func NewFileRepository(name, path string) (*DocumentStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		logrus.WithError(err).Error("error getting absolute path")
		return nil, err
	}
	return NewDocumentStore(name, &FileBackend{Path: abs}), nil
}

// Kind returns "fs".
func (f *FileBackend) Kind() string {
	return "fs"
}

// Read returns the file content, or nothing if the file does not exist yet.
func (f *FileBackend) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return []byte{}, nil
	}
	if err != nil {
		logrus.Debug("error reading file")
		return nil, err
	}
	return data, nil
}

// Write replaces the file atomically by writing a sibling temp file and
// renaming it over the original.
func (f *FileBackend) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

// Watch calls onChange whenever the file is written, created or renamed
// into place until ctx is cancelled. The parent directory is watched so
// atomic replacements are seen.
func (f *FileBackend) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(f.Path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(f.Path) {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					logrus.WithField("path", f.Path).Debug("document changed on disk")
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logrus.WithError(err).Error("error watching file")
			}
		}
	}()
	return nil
}
