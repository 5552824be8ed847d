package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists the volatile session state. Writes are last-write-wins
// and carry no versioning, which is why the coordinator serializes every
// read-modify-write within one operation.
type Store interface {
	// Load returns the current state, or a fresh idle state when
	// nothing has been stored yet.
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, st *State) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the state as serialized bytes, so loads hand back
// deep copies the way an external store would
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore creates an empty in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (ms *MemoryStore) Load(ctx context.Context) (*State, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if len(ms.data) == 0 {
		return NewIdleState(), nil
	}
	return decodeState(ms.data)
}

func (ms *MemoryStore) Save(ctx context.Context, st *State) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.data = data
	return nil
}

func (ms *MemoryStore) Clear(ctx context.Context) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.data = nil
	return nil
}

// FileStore keeps the state in a single JSON file, for single-machine
// daemons that must survive restarts
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a session store at the given path, creating
// parent directories as needed
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("session state path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create session state directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (fs *FileStore) Load(ctx context.Context) (*State, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewIdleState(), nil
		}
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}
	return decodeState(data)
}

func (fs *FileStore) Save(ctx context.Context, st *State) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := os.WriteFile(fs.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}
	return nil
}

func (fs *FileStore) Clear(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear session state: %w", err)
	}
	return nil
}

func encodeState(st *State) ([]byte, error) {
	if st == nil {
		return nil, fmt.Errorf("session state cannot be nil")
	}
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session state: %w", err)
	}
	return data, nil
}

func decodeState(data []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}
	if st.Phase == "" {
		st.Phase = PhaseIdle
	}
	return &st, nil
}
