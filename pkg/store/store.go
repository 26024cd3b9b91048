package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"linkprobe/pkg/log"
	"linkprobe/pkg/models"
	"linkprobe/pkg/utils"
)

const fileKeyPrefix = "file:"

// CaptureStore owns the compressed bodies captured during one seed's crawl,
// keyed by absolute path. It is run-scoped: the backing badger instance runs
// in memory and nothing survives Close.
type CaptureStore struct {
	db  *badger.DB
	log *logrus.Entry

	mu    sync.Mutex
	paths []string // capture order
}

// storedFile is the on-disk representation of a captured file. Body holds the
// gzip-compressed bytes produced at File construction.
type storedFile struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// NewCaptureStore opens an in-memory badger instance for one seed's captures
func NewCaptureStore(logger *logrus.Entry) (*CaptureStore, error) {
	badgerLogger := log.NewBadgerAdapter(logger.WithField("component", "capturedb"))
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening capture store: %w", utils.ErrDatabase, err)
	}
	return &CaptureStore{db: db, log: logger}, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for badger transaction
// conflicts; concurrent workers capturing simultaneously can collide.
func (s *CaptureStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("Capture store transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// Put stores a captured file under its path. The body is already compressed
// by File construction; the store never touches the bytes.
func (s *CaptureStore) Put(f *models.File) error {
	key := []byte(fileKeyPrefix + f.Path)
	value, err := json.Marshal(storedFile{ContentType: f.ContentType, Body: f.Compressed()})
	if err != nil {
		return fmt.Errorf("%w: encoding file '%s': %w", utils.ErrDatabase, f.Path, err)
	}

	isNew := false
	err = s.dbUpdate(func(txn *badger.Txn) error {
		_, getErr := txn.Get(key)
		if errors.Is(getErr, badger.ErrKeyNotFound) {
			isNew = true
		} else if getErr != nil {
			return getErr
		}
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("%w: storing file '%s': %w", utils.ErrDatabase, f.Path, err)
	}

	if isNew {
		s.mu.Lock()
		s.paths = append(s.paths, f.Path)
		s.mu.Unlock()
	}
	s.log.WithFields(logrus.Fields{"path": f.Path, "compressed_bytes": f.CompressedSize()}).Debug("Captured file stored")
	return nil
}

// Get retrieves a captured file by path. The boolean reports whether the
// path was present.
func (s *CaptureStore) Get(path string) (*models.File, bool, error) {
	key := []byte(fileKeyPrefix + path)
	var stored storedFile
	err := s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(key)
		if getErr != nil {
			return getErr
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: reading file '%s': %w", utils.ErrDatabase, path, err)
	}
	return models.FileFromCompressed(path, stored.ContentType, stored.Body), true, nil
}

// Files returns all captured files in capture order
func (s *CaptureStore) Files() ([]*models.File, error) {
	s.mu.Lock()
	paths := make([]string, len(s.paths))
	copy(paths, s.paths)
	s.mu.Unlock()

	files := make([]*models.File, 0, len(paths))
	for _, path := range paths {
		f, ok, err := s.Get(path)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: file '%s' missing from store", utils.ErrDatabase, path)
		}
		files = append(files, f)
	}
	return files, nil
}

// Len returns the number of captured files
func (s *CaptureStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

// Close releases the in-memory database
func (s *CaptureStore) Close() error {
	return s.db.Close()
}
