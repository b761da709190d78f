package utils

import "strings"

// CapabilitySet normalizes advertised URL schemes into a lookup set.
// Values are trimmed and lowercased; blanks are dropped.
func CapabilitySet(schemes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(schemes))
	for _, scheme := range schemes {
		scheme = strings.ToLower(strings.TrimSpace(scheme))
		if scheme == "" {
			continue
		}
		set[scheme] = struct{}{}
	}
	return set
}
