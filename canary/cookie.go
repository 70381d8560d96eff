package canary

import "strings"

// OrgCookie is the name of the cookie carrying the organization ID.
const OrgCookie = "orgId"

// Cookie returns the value of the named cookie from a raw Cookie header
// value of the form "name=value; name2=value2".
//
// The name must match a cookie name exactly, so looking up orgId never
// matches xorgId or orgIdx. When the name occurs multiple times, the first
// occurrence wins. Pairs without '=' are skipped, and an empty value is
// reported as not present.
func Cookie(raw, name string) (string, bool) {
	if name == "" {
		return "", false
	}

	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, ";")

		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || strings.TrimSpace(key) != name {
			continue
		}

		value = strings.TrimSpace(value)
		if value == "" {
			return "", false
		}

		return value, true
	}

	return "", false
}
