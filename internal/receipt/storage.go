package receipt

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage defines the interface for temporary upload storage
type Storage interface {
	// Save saves a file and returns its name within the storage
	Save(filename string, data []byte) (string, error)

	// Path returns the filesystem location of a saved file
	Path(name string) string

	// Delete removes a file
	Delete(name string) error
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save saves a file to local storage
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	name := filepath.Base(filename)
	if err := os.WriteFile(l.Path(name), data, 0600); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return name, nil
}

// Path returns the full path of a stored file
func (l *LocalStorage) Path(name string) string {
	return filepath.Join(l.basePath, filepath.Base(name))
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(name string) error {
	if err := os.Remove(l.Path(name)); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
