package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	sourceExt = ".tf"
	metaExt   = ".meta.json"
)

type fileMeta struct {
	Digest    string    `json:"digest"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

// FileStore keeps each template as <name>.tf next to a <name>.meta.json sidecar.
type FileStore struct {
	dir   string
	clock func() time.Time
}

// NewFileStore constructs a store rooted at dir; the directory is created on
// first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, clock: time.Now}
}

func (s *FileStore) Save(_ context.Context, t Template) error {
	prepared, err := prepare(t, s.clock())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create template directory: %w", err)
	}
	meta, err := json.MarshalIndent(fileMeta{
		Digest:    prepared.Digest,
		UpdatedAt: prepared.UpdatedAt,
		UpdatedBy: prepared.UpdatedBy,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode template metadata: %w", err)
	}
	// Source first: a stale sidecar fails the digest check on load.
	if err := writeAtomic(s.path(t.Name, sourceExt), prepared.Source); err != nil {
		return fmt.Errorf("write template %s: %w", t.Name, err)
	}
	if err := writeAtomic(s.path(t.Name, metaExt), append(meta, '\n')); err != nil {
		return fmt.Errorf("write template metadata %s: %w", t.Name, err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context, name string) (*Template, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	src, err := os.ReadFile(s.path(name, sourceExt))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errTemplateNotFound, name)
		}
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}
	t := &Template{Name: name, Source: src}

	raw, err := os.ReadFile(s.path(name, metaExt))
	switch {
	case errors.Is(err, os.ErrNotExist):
		t.Digest = Digest(src)
		return t, nil
	case err != nil:
		return nil, fmt.Errorf("read template metadata %s: %w", name, err)
	}
	var meta fileMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode template metadata %s: %w", name, err)
	}
	t.Digest = meta.Digest
	t.UpdatedAt = meta.UpdatedAt
	t.UpdatedBy = meta.UpdatedBy
	if err := verify(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *FileStore) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list templates: %w", err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, sourceExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, sourceExt))
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) path(name, ext string) string {
	return filepath.Join(s.dir, name+ext)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".template-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
