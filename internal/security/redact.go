package security

import (
	"os"
	"strings"
)

// Option keys whose values must never reach a diagnostic stream.
var sensitiveOptionKeys = map[string]struct{}{
	"identityfile": {},
	"proxycommand": {},
}

// RedactArgs returns a copy of an SSH argument vector safe for logging:
// the value following -i and the value of any known-sensitive -o option is
// replaced with [REDACTED]. The input slice is never modified.
func RedactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out); i++ {
		if out[i] == "-i" && i+1 < len(out) {
			out[i+1] = "[REDACTED]"
			i++
			continue
		}
		if out[i] == "-o" && i+1 < len(out) {
			key, _, found := strings.Cut(out[i+1], "=")
			if !found {
				continue
			}
			if _, sensitive := sensitiveOptionKeys[strings.ToLower(strings.TrimSpace(key))]; sensitive {
				out[i+1] = key + "=[REDACTED]"
			}
			i++
		}
	}
	return out
}

// RedactMessage strips the home directory prefix from user-visible text so
// error strings do not leak local filesystem layout.
func RedactMessage(msg string) string {
	if msg == "" {
		return msg
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		msg = strings.ReplaceAll(msg, home, "~")
	}
	return msg
}
