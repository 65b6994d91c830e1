package coordination

import "sort"

// ChangeKind classifies what the merge did with an element.
type ChangeKind string

const (
	// ChangeAdded marks an element present only in current.
	ChangeAdded ChangeKind = "added"
	// ChangeRemoved marks an element present only in previous; it was dropped.
	ChangeRemoved ChangeKind = "removed"
	// ChangeUpdated marks a matched element whose value changed.
	ChangeUpdated ChangeKind = "updated"
	// ChangeUnchanged marks a matched resource with identical values.
	ChangeUnchanged ChangeKind = "unchanged"
)

// Level distinguishes resource entries from attribute entries.
type Level string

const (
	LevelResource  Level = "resource"
	LevelAttribute Level = "attribute"
)

// Change is a single entry of a merge report.
type Change struct {
	Level Level      `json:"level"`
	Kind  ChangeKind `json:"kind"`
	// Path is the qualified name, followed by attribute names for nested entries.
	Path string `json:"path"`
	// CommentCarried is set when previous's annotation was kept on the merged element.
	CommentCarried bool `json:"commentCarried,omitempty"`
}

// Report lists the changes applied by MergeWithReport, ordered by path.
type Report struct {
	Changes []Change `json:"changes"`
}

func (r *Report) sort() {
	sort.SliceStable(r.Changes, func(i, j int) bool {
		return r.Changes[i].Path < r.Changes[j].Path
	})
}

// Counts tallies changes per kind at the given level.
func (r *Report) Counts(level Level) map[ChangeKind]int {
	counts := map[ChangeKind]int{}
	if r == nil {
		return counts
	}
	for _, c := range r.Changes {
		if c.Level == level {
			counts[c.Kind]++
		}
	}
	return counts
}

// HasChanges reports whether the merged document differs in content from previous.
func (r *Report) HasChanges() bool {
	if r == nil {
		return false
	}
	for _, c := range r.Changes {
		if c.Kind != ChangeUnchanged {
			return true
		}
	}
	return false
}

// CarriedComments counts annotations brought forward from previous.
func (r *Report) CarriedComments() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, c := range r.Changes {
		if c.CommentCarried {
			n++
		}
	}
	return n
}

// Filter returns the changes of the given kinds, keeping report order.
func (r *Report) Filter(kinds ...ChangeKind) []Change {
	if r == nil {
		return nil
	}
	var out []Change
	for _, c := range r.Changes {
		for _, k := range kinds {
			if c.Kind == k {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
