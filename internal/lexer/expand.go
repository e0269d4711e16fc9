package lexer

import "os"

// expandEnv implements the shell-style variable expansion performed on
// x"…"-prefixed strings at parse time (spec.md §4.2).
func expandEnv(s string) string {
	return os.Expand(s, os.Getenv)
}
