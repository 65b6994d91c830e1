// Package templates stores the curated template that each reconciliation
// merges live state into.
package templates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/validation"
)

const digestPrefix = "sha256:"

var (
	errTemplateNotFound = errors.New("template not found")
	errInvalidName      = errors.New("invalid template name")
	errDigestMismatch   = errors.New("template digest mismatch")
)

// ErrTemplateNotFound exposes the missing template sentinel.
func ErrTemplateNotFound() error { return errTemplateNotFound }

// ErrInvalidName exposes the name validation sentinel.
func ErrInvalidName() error { return errInvalidName }

// ErrDigestMismatch exposes the integrity check sentinel.
func ErrDigestMismatch() error { return errDigestMismatch }

// Template is a stored specification document and its provenance.
type Template struct {
	Name      string
	Source    []byte
	Digest    string
	UpdatedAt time.Time
	UpdatedBy string
}

// Store persists templates by name.
type Store interface {
	Save(ctx context.Context, t Template) error
	Load(ctx context.Context, name string) (*Template, error)
	List(ctx context.Context) ([]string, error)
}

// Digest returns the content digest recorded for src.
func Digest(src []byte) string {
	sum := sha256.Sum256(src)
	return digestPrefix + hex.EncodeToString(sum[:])
}

// ValidateName checks that name can be used as a file name and as part of a
// ConfigMap name.
func ValidateName(name string) error {
	if msgs := validation.IsDNS1123Label(name); len(msgs) > 0 {
		return fmt.Errorf("%w %q: %s", errInvalidName, name, strings.Join(msgs, "; "))
	}
	return nil
}

// prepare validates t and fills its digest and update time.
func prepare(t Template, now time.Time) (Template, error) {
	if err := ValidateName(t.Name); err != nil {
		return Template{}, err
	}
	t.Source = append([]byte(nil), t.Source...)
	t.Digest = Digest(t.Source)
	t.UpdatedAt = now.UTC().Truncate(time.Second)
	return t, nil
}

func verify(t *Template) error {
	if t.Digest != "" && t.Digest != Digest(t.Source) {
		return fmt.Errorf("%w: %s", errDigestMismatch, t.Name)
	}
	return nil
}

// MemoryStore keeps templates in memory (suitable for unit tests and dry runs).
type MemoryStore struct {
	mu        sync.Mutex
	templates map[string]Template
	clock     func() time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{templates: map[string]Template{}, clock: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, t Template) error {
	prepared, err := prepare(t, s.clock())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.Name] = prepared
	return nil
}

func (s *MemoryStore) Load(_ context.Context, name string) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errTemplateNotFound, name)
	}
	t.Source = append([]byte(nil), t.Source...)
	return &t, nil
}

func (s *MemoryStore) List(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
