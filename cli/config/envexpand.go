// Package config loads flashgen.yaml, the optional per-crate defaults file
// for flashgen export.
package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes ${VAR} and ${VAR:-default} references.
//
// ${VAR} becomes the variable's value, or "" when unset. ${VAR:-default}
// falls back to default when the variable is unset or empty. Unset
// variables are not an error; a missing webhook URL or bucket fails later
// in validation.
func ExpandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if value := os.Getenv(groups[1]); value != "" {
			return value
		}
		return groups[2]
	})
}
