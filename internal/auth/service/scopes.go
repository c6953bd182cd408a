package service

import "slices"

// HasScopes reports whether every required scope is in granted. Order and
// duplicates do not matter, and an empty requirement is always met.
func HasScopes(granted, required []string) bool {
	if len(required) == 0 {
		return true
	}

	have := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		have[s] = struct{}{}
	}
	for _, s := range required {
		if _, ok := have[s]; !ok {
			return false
		}
	}
	return true
}

// grantScopes picks the scopes a new token carries. An empty request gets
// everything the user holds; otherwise the request is narrowed to what the
// user holds, and an empty result is an error.
func grantScopes(held, requested []string) ([]string, error) {
	held = normalizeScopes(held)
	if len(requested) == 0 {
		return held, nil
	}

	granted := make([]string, 0, len(requested))
	for _, s := range normalizeScopes(requested) {
		if slices.Contains(held, s) {
			granted = append(granted, s)
		}
	}
	if len(granted) == 0 {
		return nil, ErrInvalidScope
	}
	return granted, nil
}

// normalizeScopes drops blanks and duplicates, keeping first-seen order.
func normalizeScopes(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
