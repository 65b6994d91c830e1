// Package spec models a declarative infrastructure specification: resources
// made of attributes, with comments attached as immutable metadata.
package spec

import "fmt"

// Position describes where a comment sits relative to its owner.
type Position int

const (
	// Before places the comment on the lines above the owner.
	Before Position = iota
	// Inline places the comment at the end of the owner's last line.
	Inline
	// After places the comment on the lines below the owner.
	After
)

func (p Position) String() string {
	switch p {
	case Before:
		return "before"
	case Inline:
		return "inline"
	case After:
		return "after"
	default:
		return fmt.Sprintf("Position(%d)", int(p))
	}
}

// Comment is annotation text attached to a resource, an attribute or the document.
// Text keeps the comment markers; multi-line comments are joined with "\n".
type Comment struct {
	Text     string
	Position Position
}

// Value is one of Scalar, List, Map or Block.
type Value interface {
	isValue()
}

// Scalar holds the raw source text of a non-composite expression.
type Scalar string

// List is an ordered sequence of values.
type List []Value

// MapEntry is a single key of a Map.
type MapEntry struct {
	Key   string
	Value Value
}

// Map is an ordered mapping of keys to values.
type Map []MapEntry

// Block is a nested configuration block with its own attribute namespace.
type Block struct {
	Labels     []string
	Attributes []Attribute
}

func (Scalar) isValue() {}
func (List) isValue()   {}
func (Map) isValue()    {}
func (Block) isValue()  {}

// Attribute is a named value inside a resource or block.
type Attribute struct {
	Name    string
	Value   Value
	Comment *Comment
}

// Resource is a structural unit identified by specifier, type and name.
// An empty Type or Name is treated as absent.
type Resource struct {
	Specifier  string
	Type       string
	Name       string
	Attributes []Attribute
	Comment    *Comment
}

// Attribute returns the top-level attribute with the given name.
func (r Resource) Attribute(name string) (Attribute, bool) {
	for _, attr := range r.Attributes {
		if attr.Name == name {
			return attr, true
		}
	}
	return Attribute{}, false
}

// Specification is an ordered, duplicate-free collection of resources plus
// document-level comments. Build it with New; it is never mutated afterwards.
type Specification struct {
	resources []Resource
	orphans   []Comment
	index     map[string]int
}

// New validates the resources and builds a Specification owning deep copies of
// its inputs.
func New(resources []Resource, orphans []Comment) (*Specification, error) {
	s := &Specification{
		resources: make([]Resource, 0, len(resources)),
		index:     make(map[string]int, len(resources)),
	}
	for _, r := range resources {
		key := QualifiedName(r)
		if _, exists := s.index[key]; exists {
			return nil, &DuplicateResourceError{QualifiedName: key}
		}
		if err := checkAttributeNames(key, r.Attributes); err != nil {
			return nil, err
		}
		s.index[key] = len(s.resources)
		s.resources = append(s.resources, r.Clone())
	}
	if len(orphans) > 0 {
		s.orphans = append([]Comment(nil), orphans...)
	}
	return s, nil
}

// Empty returns a specification with no resources and no comments.
func Empty() *Specification {
	return &Specification{index: map[string]int{}}
}

func checkAttributeNames(resource string, attrs []Attribute) error {
	seen := make(map[string]struct{}, len(attrs))
	for _, attr := range attrs {
		if _, dup := seen[attr.Name]; dup {
			return &DuplicateAttributeError{Resource: resource, Name: attr.Name}
		}
		seen[attr.Name] = struct{}{}
	}
	return nil
}

// Resources returns the resources in document order.
func (s *Specification) Resources() []Resource {
	if s == nil {
		return nil
	}
	out := make([]Resource, len(s.resources))
	for i, r := range s.resources {
		out[i] = r.Clone()
	}
	return out
}

// OrphanComments returns the comments not attached to any resource or attribute.
func (s *Specification) OrphanComments() []Comment {
	if s == nil || len(s.orphans) == 0 {
		return nil
	}
	return append([]Comment(nil), s.orphans...)
}

// Len reports the number of resources.
func (s *Specification) Len() int {
	if s == nil {
		return 0
	}
	return len(s.resources)
}

// Lookup finds a resource by qualified name. Resources carry no reference to
// their document; callers holding a qualified name resolve it here.
func (s *Specification) Lookup(qualifiedName string) (Resource, bool) {
	if s == nil {
		return Resource{}, false
	}
	i, ok := s.index[qualifiedName]
	if !ok {
		return Resource{}, false
	}
	return s.resources[i].Clone(), true
}

// Keys returns the qualified names in document order, each valid for Lookup.
func (s *Specification) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, len(s.resources))
	for i, r := range s.resources {
		keys[i] = QualifiedName(r)
	}
	return keys
}
