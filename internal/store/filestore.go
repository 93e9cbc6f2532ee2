package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps each collection in one JSON file under dir, e.g.
// users.json holding {"key": {...}, ...}. Writes go through a temp file
// and rename so a crash never leaves a half-written collection.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.load(collection)
	if err != nil {
		return nil, err
	}
	doc, ok := docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Put stores the document in compacted form; Get returns those exact
// bytes on every later read.
func (s *FileStore) Put(ctx context.Context, collection, key string, value []byte) error {
	var doc bytes.Buffer
	if err := json.Compact(&doc, value); err != nil {
		return fmt.Errorf("store: document for %s/%s is not valid JSON: %w", collection, key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.load(collection)
	if err != nil {
		return err
	}
	docs[key] = json.RawMessage(doc.Bytes())
	return s.save(collection, docs)
}

func (s *FileStore) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

func (s *FileStore) load(collection string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path(collection))
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read collection %s: %w", collection, err)
	}
	docs := map[string]json.RawMessage{}
	if len(data) == 0 {
		return docs, nil
	}
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", collection, err)
	}
	return docs, nil
}

func (s *FileStore) save(collection string, docs map[string]json.RawMessage) error {
	// No indentation and no HTML escaping: either would rewrite the
	// stored documents, breaking the Put/Get byte contract.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(docs); err != nil {
		return err
	}
	data := buf.Bytes()
	tmp, err := os.CreateTemp(s.dir, collection+"-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(collection))
}
