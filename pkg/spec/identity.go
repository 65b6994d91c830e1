package spec

import (
	"slices"
	"strings"
)

// QualifiedName joins the non-empty specifier, type and name with ".".
// Two resources correspond across documents iff their qualified names match.
func QualifiedName(r Resource) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{r.Specifier, r.Type, r.Name} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ".")
}

// Compare orders resources by qualified name using byte-wise comparison.
func Compare(a, b Resource) int {
	return strings.Compare(QualifiedName(a), QualifiedName(b))
}

// SortResources sorts resources in place into canonical order.
func SortResources(resources []Resource) {
	slices.SortStableFunc(resources, Compare)
}
