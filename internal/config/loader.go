package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RigiResearch/middleware-sub001/internal/cli/logging"
)

var (
	// ErrSecretsDisallowed is returned when the configuration declares a sensitive flag value.
	ErrSecretsDisallowed = errors.New("secrets are not permitted in specctl configuration")
	// ErrUnknownCommand indicates the configuration references a command not recognised by the CLI.
	ErrUnknownCommand = errors.New("unknown command referenced in specctl configuration")
	// ErrUnknownFlag indicates the configuration references an unsupported flag.
	ErrUnknownFlag = errors.New("unknown flag referenced in specctl configuration")
	// ErrInvalidFlagType indicates a YAML value cannot be coerced to the expected flag type.
	ErrInvalidFlagType = errors.New("invalid flag value type")
)

// Source identifies which layer supplied a flag value.
type Source string

const (
	// SourceDefaults marks values from the top-level defaults section.
	SourceDefaults Source = "defaults"
	// SourceCommand marks values from a command section.
	SourceCommand Source = "command"
	// SourceFlag marks values given on the command line.
	SourceFlag Source = "flag"
)

// FlagValue stores a typed flag value and the layer it came from.
type FlagValue struct {
	Value  any
	Source Source
}

// FlagSet maps flag names to values.
type FlagSet map[string]FlagValue

// Settings is a parsed specctl configuration file.
type Settings struct {
	Defaults   FlagSet
	Commands   map[string]FlagSet
	SourcePath string
}

type rawSettings struct {
	Defaults map[string]any            `yaml:"defaults"`
	Commands map[string]map[string]any `yaml:"commands"`
}

// Loader parses configuration files and validates them against the command tree.
type Loader struct {
	catalog FlagCatalog
}

// NewLoader constructs a Loader with the provided flag catalog.
func NewLoader(catalog FlagCatalog) *Loader {
	return &Loader{catalog: catalog}
}

// Load parses the YAML file at path. Unknown keys, unknown commands or flags,
// and sensitive flag names are rejected.
func (l *Loader) Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	var raw rawSettings
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse specctl config %q: %w", path, err)
	}

	settings := &Settings{
		Defaults:   FlagSet{},
		Commands:   map[string]FlagSet{},
		SourcePath: path,
	}
	if settings.Defaults, err = l.buildFlagSet(raw.Defaults, "", SourceDefaults); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}
	for command, entries := range raw.Commands {
		cmdPath := strings.Join(strings.Fields(command), " ")
		if cmdPath == "" {
			continue
		}
		if !l.catalog.IsCommandSupported(cmdPath) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmdPath)
		}
		set, err := l.buildFlagSet(entries, cmdPath, SourceCommand)
		if err != nil {
			return nil, fmt.Errorf("command %q: %w", cmdPath, err)
		}
		settings.Commands[cmdPath] = set
	}
	return settings, nil
}

func (l *Loader) buildFlagSet(entries map[string]any, command string, source Source) (FlagSet, error) {
	set := FlagSet{}
	for name, raw := range entries {
		if logging.IsSensitiveKey(name) {
			return nil, fmt.Errorf("%w: %s", ErrSecretsDisallowed, name)
		}

		var (
			flagType FlagType
			ok       bool
		)
		if command != "" {
			flagType, ok = l.catalog.FlagType(command, name)
		} else {
			flagType, ok = l.catalog.AnyFlagType(name)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFlag, name)
		}

		value, err := coerceValue(name, raw, flagType)
		if err != nil {
			return nil, err
		}
		set[name] = FlagValue{Value: value, Source: source}
	}
	return set, nil
}

func coerceValue(name string, raw any, flagType FlagType) (any, error) {
	switch flagType {
	case FlagTypeBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			value, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%w: %s expects boolean", ErrInvalidFlagType, name)
			}
			return value, nil
		default:
			return nil, fmt.Errorf("%w: %s expects boolean", ErrInvalidFlagType, name)
		}
	case FlagTypeInt:
		switch v := raw.(type) {
		case int:
			return v, nil
		case string:
			value, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%w: %s expects integer", ErrInvalidFlagType, name)
			}
			return value, nil
		default:
			return nil, fmt.Errorf("%w: %s expects integer", ErrInvalidFlagType, name)
		}
	case FlagTypeStringSlice:
		switch v := raw.(type) {
		case []any:
			out := make([]string, len(v))
			for i, item := range v {
				str, err := stringify(name, item)
				if err != nil {
					return nil, err
				}
				out[i] = str
			}
			return out, nil
		case string:
			return []string{strings.TrimSpace(v)}, nil
		default:
			return nil, fmt.Errorf("%w: %s expects string list", ErrInvalidFlagType, name)
		}
	default:
		return stringify(name, raw)
	}
}

func stringify(name string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int, int64, float64:
		return fmt.Sprint(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("%w: %s expects string-compatible value", ErrInvalidFlagType, name)
	}
}
