package logging

import (
	"regexp"
	"strings"
)

const redactionPlaceholder = "***"

var allowlistedEnvKeys = map[string]struct{}{
	"PATH":            {},
	"HOME":            {},
	"USER":            {},
	"SHELL":           {},
	"KUBECONFIG":      {},
	"PWD":             {},
	"LANG":            {},
	"LC_ALL":          {},
	"TMPDIR":          {},
	"TERM":            {},
	"XDG_CONFIG_HOME": {},
	"XDG_STATE_HOME":  {},
}

var sensitiveMarkers = []string{"password", "passphrase", "secret", "token", "apikey", "api_key", "privatekey", "private_key", "credential"}

// IsSensitiveKey reports whether a flag, attribute or variable name suggests
// its value is a credential.
func IsSensitiveKey(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// SanitizeCommand returns a sanitized string representation of the provided command arguments.
// Values of sensitive flags are redacted while leaving the overall structure intact.
func SanitizeCommand(args []string) string {
	if len(args) == 0 {
		return ""
	}

	sanitized := make([]string, 0, len(args))
	redactNext := false
	for _, arg := range args {
		if redactNext {
			sanitized = append(sanitized, redactionPlaceholder)
			redactNext = false
			continue
		}
		if !strings.HasPrefix(arg, "-") {
			sanitized = append(sanitized, arg)
			continue
		}
		if eq := strings.Index(arg, "="); eq > 0 {
			if IsSensitiveKey(arg[:eq]) {
				arg = arg[:eq+1] + redactionPlaceholder
			}
			sanitized = append(sanitized, arg)
			continue
		}
		sanitized = append(sanitized, arg)
		redactNext = IsSensitiveKey(arg)
	}
	if redactNext {
		sanitized = append(sanitized, redactionPlaceholder)
	}
	return strings.Join(sanitized, " ")
}

// SanitizeEnv returns a sanitized copy of the provided environment variables.
// Sensitive values are replaced with a placeholder while preserving allowlisted keys.
func SanitizeEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for key, value := range env {
		if _, ok := allowlistedEnvKeys[key]; ok {
			out[key] = value
			continue
		}
		if IsSensitiveKey(key) {
			out[key] = redactionPlaceholder
			continue
		}
		out[key] = value
	}
	return out
}

var (
	sensitivePattern    = regexp.MustCompile(`(?i)(password|passphrase|secret|token|apikey|privatekey)=([^\s]{1,128})`)
	sensitiveAssignment = regexp.MustCompile(`(?i)(\w*(?:password|passphrase|secret|token|apikey|api_key|privatekey|private_key)\w*)(\s*=\s*)("[^"\n]*"|[^\s,}\]]+)`)
)

// SanitizeText redacts sensitive key/value pairs inside freeform strings,
// including assignments written in specification syntax.
func SanitizeText(text string) string {
	if text == "" {
		return ""
	}
	text = sensitiveAssignment.ReplaceAllString(text, "${1}${2}"+redactionPlaceholder)
	return sensitivePattern.ReplaceAllStringFunc(text, func(match string) string {
		parts := strings.SplitN(match, "=", 2)
		if len(parts) != 2 {
			return match
		}
		return parts[0] + "=" + redactionPlaceholder
	})
}

// SanitizeAttribute returns the loggable form of an attribute value. The
// whole value is redacted when the last segment of path names a credential.
func SanitizeAttribute(path, value string) string {
	name := path
	if i := strings.LastIndexAny(path, "./"); i >= 0 {
		name = path[i+1:]
	}
	if IsSensitiveKey(name) {
		return redactionPlaceholder
	}
	return SanitizeText(value)
}
