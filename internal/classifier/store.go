package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	modelBucketName = "classifier"
	modelKey        = "model"
)

// ErrModelNotFound is returned by Store.Load when nothing has been saved yet
var ErrModelNotFound = errors.New("classifier model not found")

// Store defines the interface for persisting the keyword model. Save
// replaces the whole stored model in one step.
type Store interface {
	Load() (Model, error)
	Save(m Model) error
	Close() error
}

// OpenStore opens a FileStore for paths ending in .json and a BoltStore
// otherwise
func OpenStore(path string) (Store, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return NewFileStore(path)
	}
	return NewBoltStore(path)
}

// BoltStore implements the Store interface using BoltDB
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore creates a new BoltStore instance
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating model directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(modelBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Load reads the stored model
func (b *BoltStore) Load() (Model, error) {
	var m Model
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(modelBucketName)).Get([]byte(modelKey))
		if data == nil {
			return ErrModelNotFound
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("unmarshaling model: %w", err)
		}
		return nil
	})
	if err != nil {
		return Model{}, err
	}
	return m, nil
}

// Save replaces the stored model inside a single transaction
func (b *BoltStore) Save(m Model) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling model: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(modelBucketName)).Put([]byte(modelKey), data)
	})
}

// Close closes the database
func (b *BoltStore) Close() error {
	return b.db.Close()
}

// FileStore implements the Store interface with a single JSON file that is
// replaced by rename on every save
type FileStore struct {
	path string
}

// NewFileStore creates a new FileStore instance
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating model directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Load reads the model file
func (f *FileStore) Load() (Model, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Model{}, ErrModelNotFound
	}
	if err != nil {
		return Model{}, fmt.Errorf("reading model: %w", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return Model{}, fmt.Errorf("unmarshaling model: %w", err)
	}
	return m, nil
}

// Save writes the model to a temporary file and renames it over the old one
func (f *FileStore) Save(m Model) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling model: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing model: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing model: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing model: %w", err)
	}
	return nil
}

// Close is a no-op for files
func (f *FileStore) Close() error {
	return nil
}
