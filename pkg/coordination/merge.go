// Package coordination reconciles a curated specification with one derived
// from live infrastructure.
//
// The current document is authoritative for which resources and attributes
// exist and for their values. The previous document contributes annotations:
// whenever current leaves a matched resource or attribute uncommented, the
// previous comment is carried forward. Merge never mutates its inputs and
// always returns resources in canonical order, so repeated reconciliation of
// the same pair yields identical output.
package coordination

import (
	"slices"
	"strconv"

	"github.com/RigiResearch/middleware-sub001/pkg/spec"
)

// Merge combines previous and current into a new specification.
// A nil specification is treated as empty.
func Merge(previous, current *spec.Specification) *spec.Specification {
	merged, _ := MergeWithReport(previous, current)
	return merged
}

// MergeWithReport behaves like Merge and also describes every change applied.
func MergeWithReport(previous, current *spec.Specification) (*spec.Specification, *Report) {
	m := &merger{report: &Report{}}

	prevResources := previous.Resources()
	prevIndex := make(map[string]int, len(prevResources))
	for i, r := range prevResources {
		prevIndex[spec.QualifiedName(r)] = i
	}

	curResources := current.Resources()
	curKeys := make(map[string]struct{}, len(curResources))
	out := make([]spec.Resource, 0, len(curResources))
	for _, rc := range curResources {
		key := spec.QualifiedName(rc)
		curKeys[key] = struct{}{}
		i, matched := prevIndex[key]
		if !matched {
			m.record(LevelResource, ChangeAdded, key, false)
			out = append(out, rc)
			continue
		}
		out = append(out, m.mergeResource(key, prevResources[i], rc))
	}

	for _, rp := range prevResources {
		key := spec.QualifiedName(rp)
		if _, kept := curKeys[key]; !kept {
			m.record(LevelResource, ChangeRemoved, key, false)
		}
	}

	spec.SortResources(out)

	orphans := current.OrphanComments()
	if len(orphans) == 0 {
		orphans = previous.OrphanComments()
	}

	// Keys and top-level attribute names all come from current, which
	// spec.New already validated, so the error is always nil.
	merged, _ := spec.New(out, orphans)
	m.report.sort()
	return merged, m.report
}

type merger struct {
	report *Report
}

func (m *merger) record(level Level, kind ChangeKind, path string, carried bool) {
	m.report.Changes = append(m.report.Changes, Change{
		Level:          level,
		Kind:           kind,
		Path:           path,
		CommentCarried: carried,
	})
}

func (m *merger) mergeResource(key string, rp, rc spec.Resource) spec.Resource {
	out := rc
	var carried bool
	out.Comment, carried = pickComment(rp.Comment, rc.Comment)

	var changed bool
	out.Attributes, changed = m.mergeAttributes(key, rp.Attributes, rc.Attributes)

	kind := ChangeUnchanged
	if changed {
		kind = ChangeUpdated
	}
	m.record(LevelResource, kind, key, carried)
	return out
}

// attrKey identifies an attribute by name and by how many earlier siblings
// share that name. Top-level names are unique, so n is always zero there.
type attrKey struct {
	name string
	n    int
}

func keyAttributes(attrs []spec.Attribute) []attrKey {
	seen := make(map[string]int, len(attrs))
	keys := make([]attrKey, len(attrs))
	for i, attr := range attrs {
		keys[i] = attrKey{name: attr.Name, n: seen[attr.Name]}
		seen[attr.Name]++
	}
	return keys
}

func attributePath(parent string, key attrKey) string {
	if key.n == 0 {
		return parent + "." + key.name
	}
	return parent + "." + key.name + "[" + strconv.Itoa(key.n) + "]"
}

// mergeAttributes returns the merged list in current's order and whether any
// value or membership changed.
func (m *merger) mergeAttributes(parent string, prev, cur []spec.Attribute) ([]spec.Attribute, bool) {
	prevKeys := keyAttributes(prev)
	prevIndex := make(map[attrKey]int, len(prev))
	for i, key := range prevKeys {
		prevIndex[key] = i
	}

	changed := false
	curKeys := keyAttributes(cur)
	matched := make(map[attrKey]struct{}, len(cur))
	out := make([]spec.Attribute, 0, len(cur))
	for i, ac := range cur {
		key := curKeys[i]
		path := attributePath(parent, key)
		j, ok := prevIndex[key]
		if !ok {
			m.record(LevelAttribute, ChangeAdded, path, false)
			changed = true
			out = append(out, ac)
			continue
		}
		matched[key] = struct{}{}
		merged, attrChanged := m.mergeAttribute(path, prev[j], ac)
		changed = changed || attrChanged
		out = append(out, merged)
	}

	for _, key := range prevKeys {
		if _, ok := matched[key]; !ok {
			m.record(LevelAttribute, ChangeRemoved, attributePath(parent, key), false)
			changed = true
		}
	}
	return out, changed
}

func (m *merger) mergeAttribute(path string, ap, ac spec.Attribute) (spec.Attribute, bool) {
	out := ac
	var carried bool
	out.Comment, carried = pickComment(ap.Comment, ac.Comment)

	var changed, nested bool
	out.Value, changed, nested = m.mergeValue(path, ap.Value, ac.Value)
	if (changed && !nested) || carried {
		kind := ChangeUnchanged
		if changed {
			kind = ChangeUpdated
		}
		m.record(LevelAttribute, kind, path, carried)
	}
	return out, changed
}

// mergeValue takes current's value, recursing into blocks so nested comments
// survive. nested reports that changes were recorded below path.
//
// A lone block and a list of blocks are the same repeated block type with a
// different count, so either side is matched position by position against the
// other and the result keeps current's shape.
func (m *merger) mergeValue(path string, pv, cv spec.Value) (spec.Value, bool, bool) {
	switch c := cv.(type) {
	case spec.Block:
		if pl, ok := pv.(spec.List); ok && len(pl) > 0 {
			first, ok := pl[0].(spec.Block)
			if !ok {
				break
			}
			merged, _, _ := m.mergeValue(path, first, c)
			if slices.Equal(first.Labels, c.Labels) {
				m.record(LevelAttribute, ChangeUpdated, path, false)
			}
			return merged, true, true
		}
		p, ok := pv.(spec.Block)
		if !ok {
			break
		}
		attrs, attrsChanged := m.mergeAttributes(path, p.Attributes, c.Attributes)
		labelsChanged := !slices.Equal(p.Labels, c.Labels)
		if labelsChanged {
			m.record(LevelAttribute, ChangeUpdated, path, false)
		}
		return spec.Block{Labels: c.Labels, Attributes: attrs}, attrsChanged || labelsChanged, true
	case spec.List:
		if pb, ok := pv.(spec.Block); ok {
			pv = spec.List{pb}
		}
		p, ok := pv.(spec.List)
		if !ok || !hasBlocks(c) {
			break
		}
		out := make(spec.List, len(c))
		for i, item := range c {
			cb, isBlock := item.(spec.Block)
			if i >= len(p) || !isBlock {
				out[i] = item
				continue
			}
			if _, prevBlock := p[i].(spec.Block); !prevBlock {
				out[i] = item
				continue
			}
			merged, _, _ := m.mergeValue(path+"["+strconv.Itoa(i)+"]", p[i], cb)
			out[i] = merged
		}
		listChanged := !spec.SameShape(pv, cv)
		if listChanged && len(p) != len(c) {
			m.record(LevelAttribute, ChangeUpdated, path, false)
		}
		return out, listChanged, true
	}
	return cv, !spec.SameShape(pv, cv), false
}

func hasBlocks(list spec.List) bool {
	for _, item := range list {
		if _, ok := item.(spec.Block); ok {
			return true
		}
	}
	return false
}

// pickComment prefers current's comment and otherwise carries previous's.
func pickComment(prev, cur *spec.Comment) (*spec.Comment, bool) {
	if cur != nil {
		return cur, false
	}
	if prev != nil {
		carried := *prev
		return &carried, true
	}
	return nil, false
}
