package model

import "strings"

// ParseTargets parses a comma-separated list of target function names into
// an ordered TargetList. Entries are trimmed; entries that are empty after
// trimming are dropped silently. An input that yields no targets at all is
// a ConfigError, since a run exists to deploy something.
func ParseTargets(raw string) ([]string, error) {
	var targets []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		targets = append(targets, entry)
	}
	if len(targets) == 0 {
		return nil, &ConfigError{Field: "FUNCTIONS_TO_DEPLOY", Reason: "no targets configured"}
	}
	return targets, nil
}
