package policy

import "strings"

func matchGlob(pattern, name string) bool {
	if pattern == "*" {
		return true
	}

	// Subpackage wildcard: com.vendor.* matches com.vendor.app but not
	// com.vendor itself.
	if strings.HasSuffix(pattern, ".*") && !strings.Contains(pattern[:len(pattern)-2], "*") {
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}

	if strings.Contains(pattern, "*") {
		return matchWildcard(pattern, name)
	}

	return pattern == name
}

// matchWildcard handles patterns with * wildcards anywhere
func matchWildcard(pattern, name string) bool {
	parts := strings.Split(pattern, "*")

	if !strings.HasPrefix(name, parts[0]) {
		return false
	}
	name = name[len(parts[0]):]

	last := parts[len(parts)-1]
	if !strings.HasSuffix(name, last) {
		return false
	}
	name = name[:len(name)-len(last)]

	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(name, part)
		if idx < 0 {
			return false
		}
		name = name[idx+len(part):]
	}
	return true
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if matchGlob(p, name) {
			return true
		}
	}
	return false
}
