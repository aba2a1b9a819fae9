package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands environment variable references in s.
//
// Semantics:
//   - `$VAR` and `${VAR}` expand via os.ExpandEnv.
//   - A `${VAR}` reference to a variable missing from the environment is an
//     error, so a typo'd secret reference fails loudly instead of producing
//     an empty credential.
//   - `$$` emits a literal `$`.
func ExpandEnvStrict(s string) (string, error) {
	const literalDollar = "\x00tinkex-literal-dollar\x00"
	s = strings.ReplaceAll(s, "$$", literalDollar)

	var missing []string
	seen := make(map[string]struct{})
	for _, match := range envRefPattern.FindAllStringSubmatch(s, -1) {
		name := match[1]
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := os.LookupEnv(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	s = os.ExpandEnv(s)
	return strings.ReplaceAll(s, literalDollar, "$"), nil
}
