// Package catalog maintains the JSON side-index of the prompt library.
//
// The index is a repairable cache: the filesystem stays authoritative,
// and catalog entries only speed up category/keyword lookups. A corrupt
// index file is therefore downgraded to an empty one rather than
// failing startup.
package catalog

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrPersistence wraps failures writing the index file. Callers treat
// these as degradations, not operation failures.
var ErrPersistence = errors.New("catalog persistence failed")

// SessionEntry summarizes one organized transcript in the index.
type SessionEntry struct {
	SessionID    string   `json:"session_id"`
	Started      string   `json:"started"`
	Duration     string   `json:"duration,omitempty"`
	MainCategory string   `json:"main_category"`
	Categories   []string `json:"categories"`
	PromptCount  int      `json:"num_prompts"`
	Summary      string   `json:"summary"`
}

// indexData is the persisted index structure.
type indexData struct {
	Sessions   []SessionEntry      `json:"sessions"`
	Categories map[string][]string `json:"categories"` // category -> relative paths
	Keywords   map[string][]string `json:"keywords"`   // lowercased term -> relative paths or session ids
}

// Snapshot is a read-only copy of the index for rendering.
type Snapshot struct {
	Sessions   []SessionEntry
	Categories map[string][]string
	Keywords   map[string][]string
}

// Catalog manages the index.json file next to the prompt documents.
type Catalog struct {
	mu       sync.RWMutex
	filePath string
	logger   *zap.Logger
	data     *indexData
}

// New opens (or initializes) the index at dir/index.json.
func New(dir string, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Catalog{
		filePath: filepath.Join(dir, "index.json"),
		logger:   logger,
		data:     emptyIndex(),
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	if err := c.load(); err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		// The index is derived data; a broken file is replaced on the
		// next save instead of blocking startup.
		logger.Warn("index file unreadable, starting empty",
			zap.String("path", c.filePath),
			zap.Error(err),
		)
		c.data = emptyIndex()
	}

	return c, nil
}

func emptyIndex() *indexData {
	return &indexData{
		Sessions:   []SessionEntry{},
		Categories: make(map[string][]string),
		Keywords:   make(map[string][]string),
	}
}

// AddDocument records a prompt file under its category and keywords.
// Both lists are deduplicated; keywords are lowercased.
func (c *Catalog) AddDocument(relPath, category string, keywords []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.Categories[category] = appendUnique(c.data.Categories[category], relPath)
	for _, kw := range keywords {
		term := strings.ToLower(strings.TrimSpace(kw))
		if term == "" {
			continue
		}
		c.data.Keywords[term] = appendUnique(c.data.Keywords[term], relPath)
	}

	return c.save()
}

// AddSession records an organized transcript plus its keyword terms.
// Keyword terms map to the session id rather than a file path.
func (c *Catalog) AddSession(entry SessionEntry, keywords []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.Sessions = append(c.data.Sessions, entry)
	for _, kw := range keywords {
		term := strings.ToLower(strings.TrimSpace(kw))
		if term == "" {
			continue
		}
		c.data.Keywords[term] = appendUnique(c.data.Keywords[term], entry.SessionID)
	}

	return c.save()
}

// HasSession reports whether a transcript with the given id has
// already been recorded.
func (c *Catalog) HasSession(sessionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, s := range c.data.Sessions {
		if s.SessionID == sessionID {
			return true
		}
	}
	return false
}

// RemovePath drops the path from every category and keyword list.
func (c *Catalog) RemovePath(relPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for category, paths := range c.data.Categories {
		c.data.Categories[category] = remove(paths, relPath)
	}
	for term, refs := range c.data.Keywords {
		c.data.Keywords[term] = remove(refs, relPath)
	}

	return c.save()
}

// Snapshot returns a deep copy of the current index.
func (c *Catalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		Sessions:   slices.Clone(c.data.Sessions),
		Categories: make(map[string][]string, len(c.data.Categories)),
		Keywords:   make(map[string][]string, len(c.data.Keywords)),
	}
	for k, v := range c.data.Categories {
		snap.Categories[k] = slices.Clone(v)
	}
	for k, v := range c.data.Keywords {
		snap.Keywords[k] = slices.Clone(v)
	}
	return snap
}

// load reads the index from disk.
func (c *Catalog) load() error {
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		return err
	}

	var idx indexData
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("index file corrupted: %w", err)
	}

	// Initialize fields if nil (older files, hand edits).
	if idx.Sessions == nil {
		idx.Sessions = []SessionEntry{}
	}
	if idx.Categories == nil {
		idx.Categories = make(map[string][]string)
	}
	if idx.Keywords == nil {
		idx.Keywords = make(map[string][]string)
	}

	c.data = &idx
	return nil
}

// save writes the index atomically: temp file, fsync, rename. A reader
// never observes a torn index.json.
func (c *Catalog) save() error {
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrPersistence, err)
	}

	tmpPath := c.filePath + ".tmp." + randomSuffix()
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrPersistence, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write: %v", ErrPersistence, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: sync: %v", ErrPersistence, err)
	}
	f.Close()

	if err := os.Rename(tmpPath, c.filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename: %v", ErrPersistence, err)
	}

	return nil
}

// randomSuffix generates a random suffix for temp files.
func randomSuffix() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}

func appendUnique(list []string, value string) []string {
	if slices.Contains(list, value) {
		return list
	}
	return append(list, value)
}

func remove(list []string, value string) []string {
	return slices.DeleteFunc(list, func(s string) bool { return s == value })
}
