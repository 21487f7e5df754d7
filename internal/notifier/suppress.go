package notifier

import "slices"

// IsIgnored reports whether environment is listed in ignore. Matching is
// exact and case-sensitive.
func IsIgnored(environment string, ignore []string) bool {
	return slices.Contains(ignore, environment)
}
