// Package config loads and merges the agent/provider/server configuration
// document: a YAML file on disk, overlaid by environment variables and CLI
// flags (github.com/spf13/viper), following the teacher's layered-config
// approach.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// envRefPattern matches spec §6's `${env:VAR}` / `${env:VAR:-default}` form.
// Grounded on the teacher's internal/config/substitution.go EnvSubstituter,
// but with the teacher's own `${env://VAR}` double-slash syntax swapped for
// the single-colon `${env:VAR}` syntax the spec and the Python original
// actually use.
var envRefPattern = regexp.MustCompile(`\$\{env:([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// plainVarPattern matches the bare `${VAR}` / `${VAR:-default}` form, the
// primary env-substitution syntax per the Python original's
// config/loader.py:_expand_env (`os.getenv`-driven).
var plainVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// normalizeEnvRefs rewrites every `${env:VAR}`/`${env:VAR:-default}`
// reference to the bare `${VAR}`/`${VAR:-default}` form, mirroring the
// Python original's mcp/client.py pre-pass
// (`re.sub(r"\$\{env:([A-Za-z_]\w*)\}", r"${\1}", raw)`) so both forms are
// then expanded by a single pass against the process environment.
func normalizeEnvRefs(content string) string {
	return envRefPattern.ReplaceAllString(content, `$${$1$2}`)
}

// SubstituteEnv replaces every `${env:VAR}` and bare `${VAR}` reference
// (with optional `:-default`) in content with the named environment
// variable's value, falling back to the default when present. A reference
// to an unset variable with no default is a hard error, naming every
// offending variable it found. Both forms resolve against os.Getenv, per
// spec §6 and the Python original's config/loader.py:_expand_env.
func SubstituteEnv(content string) (string, error) {
	normalized := normalizeEnvRefs(content)

	var missing []string
	result := plainVarPattern.ReplaceAllStringFunc(normalized, func(match string) string {
		groups := plainVarPattern.FindStringSubmatch(match)
		name, def, hasDefault := groups[1], groups[3], groups[2] != ""
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if hasDefault {
			return def
		}
		missing = append(missing, name)
		return match
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("required environment variable(s) not set: %s", strings.Join(missing, ", "))
	}
	return result, nil
}

// HasEnvRefs reports whether content contains an `${env:VAR}`-prefixed
// reference, prior to normalization.
func HasEnvRefs(content string) bool { return envRefPattern.MatchString(content) }
