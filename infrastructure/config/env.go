package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
)

var (
	// ${VAR}, ${VAR:-default}, ${VAR:?message}
	bracketEnvPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*|:\?[^}]*)?\}`)
	// $VAR
	simpleEnvPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// lookupFunc resolves an environment variable.
type lookupFunc func(string) (string, bool)

// expandEnv expands environment variables in input.
// Supported patterns:
//   - ${VAR} - expands to the value of VAR
//   - ${VAR:-default} - expands to VAR or "default" if unset or empty
//   - ${VAR:?message} - fails if VAR is unset or empty
//   - $VAR - simple expansion
//
// Unset variables expand to "" unless strict is set, in which case every
// missing name is collected into a single ErrMissingEnvVar.
func expandEnv(input string, strict bool, lookup lookupFunc) (string, error) {
	var missing []string

	result := bracketEnvPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := bracketEnvPattern.FindStringSubmatch(match)
		name, modifier := sub[1], sub[2]
		value, ok := lookup(name)

		switch {
		case strings.HasPrefix(modifier, ":-"):
			if !ok || value == "" {
				return modifier[2:]
			}
		case strings.HasPrefix(modifier, ":?"):
			if !ok || value == "" {
				missing = append(missing, fmt.Sprintf("%s: %s", name, modifier[2:]))
				return match
			}
		case !ok:
			if strict {
				missing = append(missing, name)
			}
			return ""
		}
		return value
	})

	result = simpleEnvPattern.ReplaceAllStringFunc(result, func(match string) string {
		name := match[1:]
		value, ok := lookup(name)
		if !ok {
			if strict {
				missing = append(missing, name)
			}
			return ""
		}
		return value
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", domainconfig.ErrMissingEnvVar, strings.Join(missing, ", "))
	}
	return result, nil
}

// ExpandEnv expands environment variables, leaving unset ones empty.
func ExpandEnv(input string) string {
	result, _ := expandEnv(input, false, os.LookupEnv)
	return result
}

// ExpandEnvStrict expands environment variables and returns an error for missing vars.
func ExpandEnvStrict(input string) (string, error) {
	return expandEnv(input, true, os.LookupEnv)
}
