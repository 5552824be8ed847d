package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store is the persistence boundary for finished recordings
type Store interface {
	Save(rec *Recording) error
	Load(id string) (*Recording, error)
	List(filter ListFilter) ([]*Recording, error)
	Delete(id string) error
	DeleteAll() error
	Stats() StoreStats
	Close() error
}

// IndexEntry is the searchable summary of one stored recording
type IndexEntry struct {
	ID          string    `json:"id"`
	TestName    string    `json:"test_name"`
	URL         string    `json:"url"`
	StartTime   time.Time `json:"start_time"`
	ActionCount int       `json:"action_count"`
	Filename    string    `json:"filename"`
}

// ListFilter narrows a listing. Zero values match everything.
type ListFilter struct {
	// TestName matches as a case-insensitive substring.
	TestName string
	Since    time.Time
	Until    time.Time
	Offset   int
	Limit    int
}

// StoreStats summarizes what the store holds
type StoreStats struct {
	TotalRecordings int64
	TotalSize       int64
	OldestRecording time.Time
	NewestRecording time.Time
}

// FileStore keeps each recording as a pretty-printed JSON file next to
// an index.json that makes listing cheap
type FileStore struct {
	directory string
	maxFiles  int
	mu        sync.RWMutex
	logger    *zap.Logger
	index     map[string]*IndexEntry
	indexFile string
}

// NewFileStore opens (creating if needed) a recording directory.
// maxFiles of zero or less means unlimited retention.
func NewFileStore(directory string, maxFiles int, logger *zap.Logger) (*FileStore, error) {
	if directory == "" {
		return nil, fmt.Errorf("recording directory cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}

	store := &FileStore{
		directory: directory,
		maxFiles:  maxFiles,
		logger:    logger.With(zap.String("component", "recording_store")),
		index:     make(map[string]*IndexEntry),
		indexFile: filepath.Join(directory, "index.json"),
	}

	if err := store.loadIndex(); err != nil {
		store.logger.Warn("Failed to load recording index", zap.Error(err))
	}

	return store, nil
}

// Save writes the recording and updates the index
func (fs *FileStore) Save(rec *Recording) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if rec == nil {
		return fmt.Errorf("recording cannot be nil")
	}
	if rec.ID == "" {
		return fmt.Errorf("recording ID cannot be empty")
	}

	filename := fs.generateFilename(rec)
	path := filepath.Join(fs.directory, filename)

	if err := fs.saveToFile(rec, path); err != nil {
		return fmt.Errorf("failed to save recording to file: %w", err)
	}

	fs.index[rec.ID] = indexEntry(rec, filename)

	if err := fs.saveIndex(); err != nil {
		fs.logger.Warn("Failed to save recording index", zap.Error(err))
	}

	fs.cleanupOldFiles()

	return nil
}

// Load retrieves a recording by ID
func (fs *FileStore) Load(id string) (*Recording, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if id == "" {
		return nil, fmt.Errorf("recording ID cannot be empty")
	}

	entry, exists := fs.index[id]
	if !exists {
		return nil, fmt.Errorf("recording not found: %s", id)
	}

	return fs.loadFromFile(filepath.Join(fs.directory, entry.Filename))
}

// List returns recordings matching the filter, newest first
func (fs *FileStore) List(filter ListFilter) ([]*Recording, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var entries []*IndexEntry
	for _, entry := range fs.index {
		if matchesFilter(entry, filter) {
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartTime.After(entries[j].StartTime)
	})

	var recordings []*Recording
	start := filter.Offset
	if start >= len(entries) {
		return recordings, nil
	}
	end := len(entries)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	for _, entry := range entries[start:end] {
		rec, err := fs.loadFromFile(filepath.Join(fs.directory, entry.Filename))
		if err != nil {
			fs.logger.Warn("Failed to load recording",
				zap.String("id", entry.ID),
				zap.Error(err))
			continue
		}
		recordings = append(recordings, rec)
	}

	return recordings, nil
}

// Delete removes a recording by ID
func (fs *FileStore) Delete(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if id == "" {
		return fmt.Errorf("recording ID cannot be empty")
	}

	entry, exists := fs.index[id]
	if !exists {
		return fmt.Errorf("recording not found: %s", id)
	}

	path := filepath.Join(fs.directory, entry.Filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete recording file: %w", err)
	}

	delete(fs.index, id)

	if err := fs.saveIndex(); err != nil {
		fs.logger.Warn("Failed to save recording index", zap.Error(err))
	}

	return nil
}

// DeleteAll removes every stored recording
func (fs *FileStore) DeleteAll() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, entry := range fs.index {
		path := filepath.Join(fs.directory, entry.Filename)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			fs.logger.Warn("Failed to delete recording file",
				zap.String("file", path),
				zap.Error(err))
		}
	}

	fs.index = make(map[string]*IndexEntry)

	if err := fs.saveIndex(); err != nil {
		fs.logger.Warn("Failed to save recording index", zap.Error(err))
	}

	return nil
}

// Stats returns storage statistics
func (fs *FileStore) Stats() StoreStats {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	stats := StoreStats{TotalRecordings: int64(len(fs.index))}
	if len(fs.index) == 0 {
		return stats
	}

	first := true
	for _, entry := range fs.index {
		if first {
			stats.OldestRecording = entry.StartTime
			stats.NewestRecording = entry.StartTime
			first = false
		} else {
			if entry.StartTime.Before(stats.OldestRecording) {
				stats.OldestRecording = entry.StartTime
			}
			if entry.StartTime.After(stats.NewestRecording) {
				stats.NewestRecording = entry.StartTime
			}
		}

		if info, err := os.Stat(filepath.Join(fs.directory, entry.Filename)); err == nil {
			stats.TotalSize += info.Size()
		}
	}

	return stats
}

// Close persists the index one final time
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.saveIndex()
}

func (fs *FileStore) generateFilename(rec *Recording) string {
	start, err := ParseTime(rec.StartTime)
	if err != nil {
		start = time.Now()
	}
	return fmt.Sprintf("%s-%s.json", start.UTC().Format("20060102-150405"), rec.ID)
}

func (fs *FileStore) saveToFile(rec *Recording, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rec)
}

func (fs *FileStore) loadFromFile(path string) (*Recording, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var rec Recording
	if err := json.NewDecoder(file).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (fs *FileStore) loadIndex() error {
	file, err := os.Open(fs.indexFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(&fs.index)
}

func (fs *FileStore) saveIndex() error {
	file, err := os.Create(fs.indexFile)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(fs.index)
}

// cleanupOldFiles enforces the retention bound, oldest first
func (fs *FileStore) cleanupOldFiles() {
	if fs.maxFiles <= 0 || len(fs.index) <= fs.maxFiles {
		return
	}

	var entries []*IndexEntry
	for _, entry := range fs.index {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartTime.Before(entries[j].StartTime)
	})

	toRemove := len(entries) - fs.maxFiles
	for i := 0; i < toRemove; i++ {
		entry := entries[i]
		path := filepath.Join(fs.directory, entry.Filename)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			fs.logger.Warn("Failed to cleanup old recording",
				zap.String("file", path),
				zap.Error(err))
		}
		delete(fs.index, entry.ID)
	}

	fs.logger.Info("Cleaned up old recordings",
		zap.Int("removed", toRemove),
		zap.Int("remaining", len(fs.index)))
}

func indexEntry(rec *Recording, filename string) *IndexEntry {
	start, _ := ParseTime(rec.StartTime)
	return &IndexEntry{
		ID:          rec.ID,
		TestName:    rec.TestName,
		URL:         rec.URL,
		StartTime:   start,
		ActionCount: len(rec.Actions),
		Filename:    filename,
	}
}

func matchesFilter(entry *IndexEntry, filter ListFilter) bool {
	if filter.TestName != "" &&
		!strings.Contains(strings.ToLower(entry.TestName), strings.ToLower(filter.TestName)) {
		return false
	}
	if !filter.Since.IsZero() && entry.StartTime.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && entry.StartTime.After(filter.Until) {
		return false
	}
	return true
}

// MemoryStore implements in-memory storage for recordings (for testing)
type MemoryStore struct {
	recordings map[string]*Recording
	mu         sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recordings: make(map[string]*Recording)}
}

func (ms *MemoryStore) Save(rec *Recording) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if rec == nil {
		return fmt.Errorf("recording cannot be nil")
	}
	if rec.ID == "" {
		return fmt.Errorf("recording ID cannot be empty")
	}
	ms.recordings[rec.ID] = rec
	return nil
}

func (ms *MemoryStore) Load(id string) (*Recording, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	rec, exists := ms.recordings[id]
	if !exists {
		return nil, fmt.Errorf("recording not found: %s", id)
	}
	return rec, nil
}

func (ms *MemoryStore) List(filter ListFilter) ([]*Recording, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var entries []*IndexEntry
	byID := make(map[string]*Recording, len(ms.recordings))
	for _, rec := range ms.recordings {
		entries = append(entries, indexEntry(rec, ""))
		byID[rec.ID] = rec
	}

	var matched []*IndexEntry
	for _, entry := range entries {
		if matchesFilter(entry, filter) {
			matched = append(matched, entry)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartTime.After(matched[j].StartTime)
	})

	var out []*Recording
	start := filter.Offset
	if start >= len(matched) {
		return out, nil
	}
	end := len(matched)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	for _, entry := range matched[start:end] {
		out = append(out, byID[entry.ID])
	}
	return out, nil
}

func (ms *MemoryStore) Delete(id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.recordings[id]; !exists {
		return fmt.Errorf("recording not found: %s", id)
	}
	delete(ms.recordings, id)
	return nil
}

func (ms *MemoryStore) DeleteAll() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.recordings = make(map[string]*Recording)
	return nil
}

func (ms *MemoryStore) Stats() StoreStats {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	stats := StoreStats{TotalRecordings: int64(len(ms.recordings))}
	first := true
	for _, rec := range ms.recordings {
		start, err := ParseTime(rec.StartTime)
		if err != nil {
			continue
		}
		if first {
			stats.OldestRecording = start
			stats.NewestRecording = start
			first = false
			continue
		}
		if start.Before(stats.OldestRecording) {
			stats.OldestRecording = start
		}
		if start.After(stats.NewestRecording) {
			stats.NewestRecording = start
		}
	}
	return stats
}

func (ms *MemoryStore) Close() error {
	return nil
}
