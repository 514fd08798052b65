// Package shellword expands a command line into argv the way a shell would
// split it (quoting, escaping, whitespace) without performing any command
// substitution, variable expansion, or globbing (spec §3 TaskEnv.Command).
package shellword

import (
	"fmt"

	"github.com/google/shlex"
)

// Split expands line into argv. An empty or all-whitespace line yields an
// empty argv and no error; callers treat that as "nothing to exec".
func Split(line string) ([]string, error) {
	argv, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("shellword: split %q: %w", line, err)
	}
	return argv, nil
}
