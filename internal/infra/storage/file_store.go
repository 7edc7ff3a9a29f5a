package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jose-valero/group-guard-bot/internal/domain"
)

// FileStore guarda el documento completo en un archivo JSON. Escribe a un temporal y
// renombra, así un corte a mitad de escritura no deja el archivo roto.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: filepath.Clean(strings.TrimSpace(path))}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (domain.PersistedDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.PersistedDocument{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.PersistedDocument{}, ErrNotFound
	}
	if err != nil {
		return domain.PersistedDocument{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return domain.PersistedDocument{}, ErrNotFound
	}
	return decodeDocument(data)
}

func (s *FileStore) Save(ctx context.Context, doc domain.PersistedDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(s.path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("chmod temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp for %s: %w", path, err)
	}
	return nil
}

func encodeDocument(doc domain.PersistedDocument) ([]byte, error) {
	if doc.Version == 0 {
		doc.Version = domain.DocumentVersion
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// decodeDocument acepta documentos sin "version" (los primeros no la tenían) y rechaza
// versiones más nuevas que las que sabemos leer.
func decodeDocument(data []byte) (domain.PersistedDocument, error) {
	var doc domain.PersistedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.PersistedDocument{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Version > domain.DocumentVersion {
		return domain.PersistedDocument{}, fmt.Errorf("snapshot version %d not supported (max %d)", doc.Version, domain.DocumentVersion)
	}
	doc.Version = domain.DocumentVersion
	if doc.Stats.Groups == nil {
		doc.Stats.Groups = map[int64]domain.Counters{}
	}
	if doc.PendingRequests == nil {
		doc.PendingRequests = map[int64][]domain.JoinRequest{}
	}
	return doc, nil
}
