package spec

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateResource matches any DuplicateResourceError via errors.Is.
	ErrDuplicateResource = errors.New("duplicate resource")
	// ErrDuplicateAttribute matches any DuplicateAttributeError via errors.Is.
	ErrDuplicateAttribute = errors.New("duplicate attribute")
)

// DuplicateResourceError reports two resources sharing a qualified name.
type DuplicateResourceError struct {
	QualifiedName string
}

func (e *DuplicateResourceError) Error() string {
	return fmt.Sprintf("duplicate resource %q", e.QualifiedName)
}

func (e *DuplicateResourceError) Is(target error) bool {
	return target == ErrDuplicateResource
}

// DuplicateAttributeError reports a top-level attribute name repeated within a resource.
type DuplicateAttributeError struct {
	Resource string
	Name     string
}

func (e *DuplicateAttributeError) Error() string {
	return fmt.Sprintf("duplicate attribute %q in resource %q", e.Name, e.Resource)
}

func (e *DuplicateAttributeError) Is(target error) bool {
	return target == ErrDuplicateAttribute
}
