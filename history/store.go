// Package history persists the list of posts that were actually published.
package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrStorageCorrupt is returned when the history file exists but cannot be parsed.
	ErrStorageCorrupt = errors.New("history file is corrupt")
	// ErrStorageWrite is returned when a record could not be persisted.
	ErrStorageWrite = errors.New("history write failed")
)

const defaultLockWait = 30 * time.Second

// Store is a JSON-file backed, append-only list of Records.
type Store struct {
	path     string
	lockWait time.Duration
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	records []Record
	index   map[string]struct{}
}

// Option customises a Store.
type Option func(*Store)

// WithLockWait bounds how long Append waits for another writer.
func WithLockWait(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockWait = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a store for the file at path. Nothing is read until Load.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{
		path:     path,
		lockWait: defaultLockWait,
		logger:   zap.NewNop().Sugar(),
		index:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the location of the history file.
func (s *Store) Path() string { return s.path }

// Load reads the whole file into memory. A missing file is an empty history.
// A file that cannot be parsed leaves the store empty and returns an error
// matching ErrStorageCorrupt.
func (s *Store) Load() ([]Record, error) {
	records, err := readFile(s.path)
	s.warnUndated(records)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(records)
	if err != nil {
		return nil, err
	}
	return s.copyLocked(), nil
}

// Contains reports whether topic was already published, ignoring case and
// surrounding whitespace.
func (s *Store) Contains(topic string) bool {
	key := NormalizeTopic(topic)
	if key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[key]
	return ok
}

// Records returns a copy of the records currently held in memory.
func (s *Store) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Topics returns the topics in publication order.
func (s *Store) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Topic)
	}
	return out
}

// CountOn returns how many records were published on the calendar day of
// day, evaluated in loc.
func (s *Store) CountOn(day time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := day.In(loc).Date()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if r.PublishedAt.IsZero() {
			continue
		}
		ry, rm, rd := r.PublishedAt.In(loc).Date()
		if ry == y && rm == m && rd == d {
			n++
		}
	}
	return n
}

// Append adds record under an exclusive lock, merging it with whatever is on
// disk, and atomically replaces the file. The parent directory is created
// on first use.
func (s *Store) Append(record Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storageWrite(errors.Wrapf(err, "create %s", dir))
	}
	unlock, err := acquireLock(s.path+".lock", s.lockWait)
	if err != nil {
		return storageWrite(err)
	}
	defer unlock()

	onDisk, err := readFile(s.path)
	if err != nil {
		if !errors.Is(err, ErrStorageCorrupt) {
			return storageWrite(err)
		}
		aside := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
		if rerr := os.Rename(s.path, aside); rerr != nil {
			return storageWrite(errors.Wrap(rerr, "move corrupt history aside"))
		}
		s.logger.Warnw("corrupt history file moved aside", "path", aside)
		onDisk = nil
	}

	merged := append(onDisk, record)
	if err := writeAtomic(s.path, merged); err != nil {
		return storageWrite(err)
	}

	s.mu.Lock()
	s.setLocked(merged)
	s.mu.Unlock()
	s.logger.Debugw("history record appended", "identifier", record.Identifier, "total", len(merged))
	return nil
}

func (s *Store) warnUndated(records []Record) {
	for _, r := range records {
		if r.rawTimestamp != "" {
			s.logger.Warnw("history record has an unreadable timestamp; it will not count toward the daily limit",
				"identifier", r.Identifier, "topic", r.Topic, "timestamp", r.rawTimestamp)
		}
	}
}

// storageWrite tags err as ErrStorageWrite while keeping the cause
// reachable through errors.Is.
func storageWrite(err error) error {
	return &wrapped{sentinel: ErrStorageWrite, cause: err}
}

type wrapped struct {
	sentinel error
	cause    error
}

func (w *wrapped) Error() string   { return w.sentinel.Error() + ": " + w.cause.Error() }
func (w *wrapped) Unwrap() []error { return []error{w.sentinel, w.cause} }

func (s *Store) setLocked(records []Record) {
	s.records = records
	s.index = make(map[string]struct{}, len(records))
	for _, r := range records {
		if key := NormalizeTopic(r.Topic); key != "" {
			s.index[key] = struct{}{}
		}
	}
}

func (s *Store) copyLocked() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func readFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &wrapped{sentinel: ErrStorageCorrupt, cause: errors.Wrap(err, path)}
	}
	return records, nil
}

func writeAtomic(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode history")
	}
	data = append(data, '\n')
	return errors.Wrapf(renameio.WriteFile(path, data, 0o644), "replace %s", path)
}
