package spec

import "slices"

// Clone returns a deep copy of the resource.
func (r Resource) Clone() Resource {
	out := r
	out.Attributes = CloneAttributes(r.Attributes)
	out.Comment = cloneComment(r.Comment)
	return out
}

// CloneAttributes deep-copies an attribute list.
func CloneAttributes(attrs []Attribute) []Attribute {
	if attrs == nil {
		return nil
	}
	out := make([]Attribute, len(attrs))
	for i, attr := range attrs {
		out[i] = Attribute{
			Name:    attr.Name,
			Value:   CloneValue(attr.Value),
			Comment: cloneComment(attr.Comment),
		}
	}
	return out
}

// CloneValue deep-copies a value.
func CloneValue(v Value) Value {
	switch val := v.(type) {
	case List:
		out := make(List, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case Map:
		out := make(Map, len(val))
		for i, entry := range val {
			out[i] = MapEntry{Key: entry.Key, Value: CloneValue(entry.Value)}
		}
		return out
	case Block:
		return Block{
			Labels:     slices.Clone(val.Labels),
			Attributes: CloneAttributes(val.Attributes),
		}
	default:
		return v
	}
}

func cloneComment(c *Comment) *Comment {
	if c == nil {
		return nil
	}
	copied := *c
	return &copied
}

// Equal reports structural equality. Resources are matched by qualified name,
// so their order does not matter; attribute and orphan comment order does.
func Equal(a, b *Specification) bool {
	if a.Len() != b.Len() {
		return false
	}
	if !slices.Equal(a.OrphanComments(), b.OrphanComments()) {
		return false
	}
	if a == nil || b == nil {
		return true
	}
	for key, i := range a.index {
		j, ok := b.index[key]
		if !ok {
			return false
		}
		if !ResourcesEqual(a.resources[i], b.resources[j]) {
			return false
		}
	}
	return true
}

// ResourcesEqual compares two resources including comments.
func ResourcesEqual(a, b Resource) bool {
	return a.Specifier == b.Specifier &&
		a.Type == b.Type &&
		a.Name == b.Name &&
		CommentsEqual(a.Comment, b.Comment) &&
		AttributesEqual(a.Attributes, b.Attributes)
}

// AttributesEqual compares attribute lists in order, including comments.
func AttributesEqual(a, b []Attribute) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name ||
			!CommentsEqual(a[i].Comment, b[i].Comment) ||
			!ValuesEqual(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}

// CommentsEqual compares optional comments by text and position.
func CommentsEqual(a, b *Comment) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ValuesEqual compares values structurally, including comments inside blocks.
func ValuesEqual(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case Scalar:
		y, ok := b.(Scalar)
		return ok && x == y
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !ValuesEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case Map:
		y, ok := b.(Map)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i].Key != y[i].Key || !ValuesEqual(x[i].Value, y[i].Value) {
				return false
			}
		}
		return true
	case Block:
		y, ok := b.(Block)
		return ok && slices.Equal(x.Labels, y.Labels) && AttributesEqual(x.Attributes, y.Attributes)
	default:
		return false
	}
}

// SameShape compares values ignoring any comments nested in blocks.
func SameShape(a, b Value) bool {
	switch x := a.(type) {
	case Block:
		y, ok := b.(Block)
		if !ok || !slices.Equal(x.Labels, y.Labels) || len(x.Attributes) != len(y.Attributes) {
			return false
		}
		for i := range x.Attributes {
			if x.Attributes[i].Name != y.Attributes[i].Name || !SameShape(x.Attributes[i].Value, y.Attributes[i].Value) {
				return false
			}
		}
		return true
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !SameShape(x[i], y[i]) {
				return false
			}
		}
		return true
	case Map:
		y, ok := b.(Map)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i].Key != y[i].Key || !SameShape(x[i].Value, y[i].Value) {
				return false
			}
		}
		return true
	default:
		return ValuesEqual(a, b)
	}
}
