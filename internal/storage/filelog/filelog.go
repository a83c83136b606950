// Package filelog keeps one append-only text file per room, one record per
// line in the form "timestamp|username|message".
package filelog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/fenggwsx/SlashRelay/internal/storage"
)

const (
	fileExt          = ".txt"
	placeholderRoom  = "room"
	fieldDelimiter   = "|"
	defaultChunkSize = 4096
)

// Store is a directory of per-room log files. It implements storage.Log.
type Store struct {
	dir       string
	chunkSize int

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	closed bool
}

// Option customizes a Store.
type Option func(*Store)

// WithChunkSize sets the block size used when scanning a file backwards.
func WithChunkSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// NewStore creates dir if needed and returns a store rooted at it.
func NewStore(dir string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve log dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	s := &Store{
		dir:       abs,
		chunkSize: defaultChunkSize,
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the absolute directory holding the room files.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file backing room.
func (s *Store) Path(room string) string {
	return filepath.Join(s.dir, SanitizeRoom(room)+fileExt)
}

// Close marks the store closed. Files are opened per call, so nothing else
// is held.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Append writes rec as a single line at the end of its room file.
func (s *Store) Append(ctx context.Context, rec storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Path(rec.Room)
	lock, err := s.fileLock(path)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open room log: %w", err)
	}
	if _, err := f.WriteString(EncodeLine(rec)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write room log: %w", err)
	}
	return f.Close()
}

// Tail reads the last n records of room without scanning the whole file.
// Lines that do not parse are skipped.
func (s *Store) Tail(ctx context.Context, room string, n int) ([]storage.Record, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path(room)
	lock, err := s.fileLock(path)
	if err != nil {
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open room log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat room log: %w", err)
	}

	lines, err := tailLines(f, info.Size(), n, s.chunkSize)
	if err != nil {
		return nil, fmt.Errorf("read room log: %w", err)
	}

	records := make([]storage.Record, 0, len(lines))
	for _, line := range lines {
		if rec, ok := DecodeLine(room, line); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (s *Store) fileLock(path string) (*sync.Mutex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	lock, ok := s.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[path] = lock
	}
	return lock, nil
}

// SanitizeRoom reduces a room name to letters, digits, '-' and '_' so it can
// be used as a file name. An empty result becomes "room".
func SanitizeRoom(room string) string {
	var b strings.Builder
	for _, r := range room {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return placeholderRoom
	}
	return b.String()
}

// EncodeLine renders rec in the on-disk line format, newline included.
// Delimiters inside the fields are written as-is.
func EncodeLine(rec storage.Record) string {
	return rec.Timestamp + fieldDelimiter + rec.Username + fieldDelimiter + rec.Text + "\n"
}

// DecodeLine parses one line into a record for room. The message is
// everything after the second delimiter.
func DecodeLine(room, line string) (storage.Record, bool) {
	line = strings.TrimRight(line, "\n")
	if line == "" {
		return storage.Record{}, false
	}
	fields := strings.SplitN(line, fieldDelimiter, 3)
	if len(fields) != 3 {
		return storage.Record{}, false
	}
	return storage.Record{
		Room:      room,
		Timestamp: fields[0],
		Username:  fields[1],
		Text:      fields[2],
	}, true
}
