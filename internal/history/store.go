package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"chat-gateway/internal/llm"
)

// ErrMalformedStore is returned when the history file exists but does not
// hold a JSON array of messages.
var ErrMalformedStore = errors.New("malformed history store")

const lockRetryDelay = 20 * time.Millisecond

// Store keeps the whole conversation in one JSON file. Every Write replaces
// the file; a missing file reads as the default history.
type Store struct {
	path         string
	systemPrompt string
}

func NewStore(path, systemPrompt string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	return &Store{path: path, systemPrompt: systemPrompt}, nil
}

func (s *Store) Path() string { return s.path }

// Default is the history used when nothing has been persisted yet.
func (s *Store) Default() []llm.Message {
	return []llm.Message{{Role: llm.RoleSystem, Content: s.systemPrompt}}
}

func (s *Store) Read() ([]llm.Message, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s.Default(), nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	return decode(data)
}

// Lock takes an exclusive lock on <path>.lock, shared by every process that
// opens the same history file. The caller must call unlock when done.
func (s *Store) Lock(ctx context.Context) (unlock func(), err error) {
	fl := flock.New(s.path + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock history: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("lock history: %w", ctx.Err())
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			log.Printf("failed to unlock %s: %v", fl.Path(), err)
		}
	}, nil
}

func (s *Store) Write(msgs []llm.Message) error {
	data, err := encode(msgs)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return writeFileAtomic(s.path, data, 0o644)
}

// encode indents with two spaces and leaves <, > and & as written.
func encode(msgs []llm.Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(msgs); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func decode(data []byte) ([]llm.Message, error) {
	var msgs []llm.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStore, err)
	}
	// "null" decodes without error but is not a history
	if msgs == nil {
		return nil, fmt.Errorf("%w: not a JSON array", ErrMalformedStore)
	}
	for i, m := range msgs {
		if !m.Role.Valid() {
			return nil, fmt.Errorf("%w: message %d has unknown role %q", ErrMalformedStore, i, m.Role)
		}
	}
	return msgs, nil
}

// writeFileAtomic writes into a temp file in the same directory and renames
// it over path, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}
