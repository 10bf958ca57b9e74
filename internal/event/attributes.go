package event

import "strings"

// ParseAttributes extracts "name: value" pairs from a free-text description.
//
// Each line is split at its first colon. The key is everything before it and
// the value everything after, both trimmed of surrounding whitespace; values
// may themselves contain colons. Lines without a colon, or with an empty key
// or value, are ignored. A key seen again later in the description replaces
// the earlier value.
func ParseAttributes(description string) map[string]string {
	attrs := make(map[string]string)
	if description == "" {
		return attrs
	}

	for line := range strings.Lines(description) {
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		attrs[key] = value
	}
	return attrs
}
