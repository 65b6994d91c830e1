// Package report renders merge reports for people and for log pipelines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/RigiResearch/middleware-sub001/internal/cli/logging"
	"github.com/RigiResearch/middleware-sub001/internal/cli/options"
	"github.com/RigiResearch/middleware-sub001/pkg/coordination"
	"github.com/RigiResearch/middleware-sub001/pkg/notation"
	"github.com/RigiResearch/middleware-sub001/pkg/spec"
	"github.com/RigiResearch/middleware-sub001/pkg/state"
	"github.com/RigiResearch/middleware-sub001/pkg/telemetry"
)

var titleCaser = cases.Title(language.English)

// Summary is the JSON form of a merge report.
type Summary struct {
	Template        string                `json:"template,omitempty"`
	Resources       state.Counts          `json:"resources"`
	Attributes      state.Counts          `json:"attributes"`
	CarriedComments int                   `json:"carriedComments"`
	Changes         []coordination.Change `json:"changes"`
}

// Summarize condenses report. Unchanged entries are counted but not listed.
func Summarize(template string, r *coordination.Report) Summary {
	var record state.Record
	record.Summarize(r)
	changes := r.Filter(coordination.ChangeAdded, coordination.ChangeRemoved, coordination.ChangeUpdated)
	if changes == nil {
		changes = []coordination.Change{}
	}
	return Summary{
		Template:        template,
		Resources:       record.Resources,
		Attributes:      record.Attributes,
		CarriedComments: record.CarriedComments,
		Changes:         changes,
	}
}

// Write renders the report as text or json.
func Write(w io.Writer, template string, r *coordination.Report, format string) error {
	summary := Summarize(template, r)
	switch format {
	case options.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	case options.OutputText:
		return writeText(w, summary)
	default:
		return fmt.Errorf("%w %q", options.ErrUnknownOutput(), format)
	}
}

func writeText(w io.Writer, s Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if s.Template != "" {
		fmt.Fprintf(tw, "Template:\t%s\n", s.Template)
	}
	fmt.Fprintf(tw, "Resources:\t%s\n", countsLine(s.Resources))
	fmt.Fprintf(tw, "Attributes:\t%s\n", countsLine(s.Attributes))
	fmt.Fprintf(tw, "Comments carried:\t%d\n", s.CarriedComments)
	fmt.Fprintln(tw)
	if len(s.Changes) == 0 {
		fmt.Fprintln(tw, "No changes.")
		return tw.Flush()
	}
	fmt.Fprintln(tw, "Change\tLevel\tPath")
	for _, c := range s.Changes {
		line := fmt.Sprintf("%s\t%s\t%s", titleCaser.String(string(c.Kind)), c.Level, c.Path)
		if c.CommentCarried {
			line += "\t(comment carried)"
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}

func countsLine(c state.Counts) string {
	return fmt.Sprintf("%d added, %d removed, %d updated, %d unchanged", c.Added, c.Removed, c.Updated, c.Unchanged)
}

// Log emits one merge entry per change. Values of added and updated
// attributes are included after redaction.
func Log(logger telemetry.StructuredLogger, template string, merged *spec.Specification, r *coordination.Report) {
	if logger == nil || r == nil {
		return
	}
	for _, c := range r.Changes {
		if c.Kind == coordination.ChangeUnchanged {
			continue
		}
		metadata := map[string]string{
			"kind":  string(c.Kind),
			"level": string(c.Level),
		}
		if c.CommentCarried {
			metadata["commentCarried"] = "true"
		}
		if c.Level == coordination.LevelAttribute && c.Kind != coordination.ChangeRemoved {
			if value, ok := attributeValue(merged, c.Path); ok {
				metadata["value"] = value
			}
		}
		_ = logger.Emit(telemetry.Entry{
			Category: telemetry.CategoryMerge,
			Message:  fmt.Sprintf("%s %s", c.Level, c.Kind),
			Severity: telemetry.SeverityInfo,
			Template: template,
			Path:     c.Path,
			Metadata: metadata,
		})
	}
}

// attributeValue renders the top-level attribute at path. Attribute names
// never contain dots, so the resource is everything before the last one.
// Nested paths resolve to no resource and yield nothing.
func attributeValue(s *spec.Specification, path string) (string, bool) {
	cut := strings.LastIndexByte(path, '.')
	if cut < 0 {
		return "", false
	}
	r, ok := s.Lookup(path[:cut])
	if !ok {
		return "", false
	}
	attr, ok := r.Attribute(path[cut+1:])
	if !ok {
		return "", false
	}
	text, err := notation.FormatValue(attr.Value)
	if err != nil {
		return "", false
	}
	return logging.SanitizeAttribute(path, text), true
}
