package config

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// FlagType describes the expected Go type for a flag value.
type FlagType int

const (
	FlagTypeString FlagType = iota
	FlagTypeBool
	FlagTypeStringSlice
	FlagTypeInt
)

// FlagCatalog exposes metadata about supported commands and flags. Command
// paths omit the root command name ("spec merge", "template reconcile").
type FlagCatalog interface {
	IsCommandSupported(command string) bool
	FlagType(command, flag string) (FlagType, bool)
	AnyFlagType(flag string) (FlagType, bool)
	Commands() []string
}

type cobraCatalog struct {
	commands map[string]map[string]FlagType
	index    map[string]FlagType
}

// NewCobraCatalog builds a flag catalog from the provided Cobra root command.
func NewCobraCatalog(root *cobra.Command) FlagCatalog {
	c := &cobraCatalog{
		commands: make(map[string]map[string]FlagType),
		index:    make(map[string]FlagType),
	}
	root.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		c.index[flag.Name] = flagType(flag)
	})
	for _, child := range root.Commands() {
		c.traverse(child, nil)
	}
	return c
}

// CommandPath returns the catalog key for cmd.
func CommandPath(cmd *cobra.Command) string {
	var parts []string
	for cur := cmd; cur != nil && cur.HasParent(); cur = cur.Parent() {
		parts = append([]string{cur.Name()}, parts...)
	}
	return strings.Join(parts, " ")
}

func (c *cobraCatalog) traverse(cmd *cobra.Command, parents []string) {
	if cmd.Hidden {
		return
	}
	path := append(append([]string(nil), parents...), cmd.Name())
	flags := make(map[string]FlagType)
	record := func(flag *pflag.Flag) {
		flags[flag.Name] = flagType(flag)
		if _, ok := c.index[flag.Name]; !ok {
			c.index[flag.Name] = flagType(flag)
		}
	}
	cmd.InheritedFlags().VisitAll(record)
	cmd.NonInheritedFlags().VisitAll(record)
	c.commands[strings.Join(path, " ")] = flags

	for _, child := range cmd.Commands() {
		c.traverse(child, path)
	}
}

func (c *cobraCatalog) IsCommandSupported(command string) bool {
	_, ok := c.commands[command]
	return ok
}

func (c *cobraCatalog) FlagType(command, flag string) (FlagType, bool) {
	if flags, ok := c.commands[command]; ok {
		t, found := flags[flag]
		return t, found
	}
	return 0, false
}

func (c *cobraCatalog) AnyFlagType(flag string) (FlagType, bool) {
	t, ok := c.index[flag]
	return t, ok
}

func (c *cobraCatalog) Commands() []string {
	out := make([]string, 0, len(c.commands))
	for name := range c.commands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func flagType(flag *pflag.Flag) FlagType {
	switch flag.Value.Type() {
	case "bool":
		return FlagTypeBool
	case "stringSlice", "stringArray":
		return FlagTypeStringSlice
	case "int", "int64", "uint":
		return FlagTypeInt
	default:
		return FlagTypeString
	}
}
