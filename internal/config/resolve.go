package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// Supported summary output formats.
const (
	SummaryFormatText = "text"
	SummaryFormatJSON = "json"
)

// Resolution is the effective configuration of one command invocation.
type Resolution struct {
	CommandPath string
	SourcePath  string
	Flags       FlagSet
	Overrides   []string
	Warnings    []string
}

// Resolve layers the defaults and the command section of s for commandPath.
// Command values replace defaults of the same name.
func Resolve(s *Settings, commandPath string) *Resolution {
	res := &Resolution{CommandPath: commandPath, Flags: FlagSet{}}
	if s == nil {
		return res
	}
	res.SourcePath = s.SourcePath
	for name, value := range s.Defaults {
		res.Flags[name] = value
	}
	for _, name := range sortedNames(s.Commands[commandPath]) {
		if previous, ok := res.Flags[name]; ok {
			res.Overrides = append(res.Overrides, fmt.Sprintf("command overrides %s (was %s)", name, previous.Source))
		}
		res.Flags[name] = s.Commands[commandPath][name]
	}
	return res
}

// Apply sets each resolved flag the user did not pass explicitly. Flags given
// on the command line keep their value and are recorded with SourceFlag.
// Defaults naming flags that cmd does not define are skipped.
func Apply(cmd *cobra.Command, s *Settings) (*Resolution, error) {
	res := Resolve(s, CommandPath(cmd))
	flags := cmd.Flags()
	for _, name := range sortedNames(res.Flags) {
		value := res.Flags[name]
		flag := flags.Lookup(name)
		if flag == nil {
			if value.Source == SourceCommand {
				res.Warnings = append(res.Warnings, fmt.Sprintf("flag %q ignored (not recognised by command)", name))
			}
			delete(res.Flags, name)
			continue
		}
		if flag.Changed {
			res.Overrides = append(res.Overrides, fmt.Sprintf("flag overrides %s (was %s)", name, value.Source))
			res.Flags[name] = FlagValue{Value: flag.Value.String(), Source: SourceFlag}
			continue
		}
		for _, item := range flagStrings(value.Value) {
			if err := flags.Set(name, item); err != nil {
				return nil, fmt.Errorf("apply flag %q: %w", name, err)
			}
		}
	}
	return res, nil
}

func flagStrings(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case bool:
		return []string{strconv.FormatBool(v)}
	default:
		return []string{fmt.Sprint(v)}
	}
}

func sortedNames(set FlagSet) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FormatSummary renders a resolution in the requested format.
func FormatSummary(res *Resolution, format string) (string, error) {
	if res == nil {
		return "", fmt.Errorf("resolution is nil")
	}
	switch strings.ToLower(format) {
	case "", SummaryFormatText:
		return formatSummaryText(res)
	case SummaryFormatJSON:
		return formatSummaryJSON(res)
	default:
		return "", fmt.Errorf("unsupported summary format %q", format)
	}
}

func formatSummaryText(res *Resolution) (string, error) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Command:\t%s\n", res.CommandPath)
	if res.SourcePath != "" {
		fmt.Fprintf(tw, "Source:\t%s\n", res.SourcePath)
	}
	if len(res.Overrides) > 0 {
		fmt.Fprintf(tw, "Overrides:\t%s\n", strings.Join(res.Overrides, ", "))
	}
	if len(res.Warnings) > 0 {
		fmt.Fprintf(tw, "Warnings:\t%s\n", strings.Join(res.Warnings, ", "))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "Flag\tValue\tSource")
	for _, name := range sortedNames(res.Flags) {
		value := res.Flags[name]
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, strings.Join(flagStrings(value.Value), ","), value.Source)
	}
	if err := tw.Flush(); err != nil {
		return "", fmt.Errorf("flush summary: %w", err)
	}
	return buf.String(), nil
}

func formatSummaryJSON(res *Resolution) (string, error) {
	type flagEntry struct {
		Name   string `json:"name"`
		Value  any    `json:"value"`
		Source Source `json:"source"`
	}
	names := sortedNames(res.Flags)
	flags := make([]flagEntry, 0, len(names))
	for _, name := range names {
		value := res.Flags[name]
		flags = append(flags, flagEntry{Name: name, Value: value.Value, Source: value.Source})
	}

	payload := map[string]any{
		"commandPath": res.CommandPath,
		"sourcePath":  res.SourcePath,
		"flags":       flags,
	}
	if len(res.Overrides) > 0 {
		payload["overrides"] = res.Overrides
	}
	if len(res.Warnings) > 0 {
		payload["warnings"] = res.Warnings
	}
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary json: %w", err)
	}
	return string(encoded), nil
}
