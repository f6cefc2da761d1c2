package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"MarketFeed/internal/model"
)

// FileRepository stores the snapshot document as a single JSON file.
type FileRepository struct {
	mu   sync.Mutex
	path string
}

// NewFileRepository creates a repository at path, creating its directory if needed.
func NewFileRepository(path string) (*FileRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	return &FileRepository{path: path}, nil
}

// Load reads the snapshot document. Returns ErrNoSnapshot if the file doesn't exist.
func (r *FileRepository) Load() (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	return decodeDocument(data)
}

// Save writes the document through a temp file and rename so readers never see a partial file.
func (r *FileRepository) Save(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (r *FileRepository) Close() error { return nil }

func decodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.History == nil {
		doc.History = make(map[string][]model.Candle)
	}
	return &doc, nil
}
