// Package prefix implements the optional key-prefix normalization shared by
// every source provider: a provider configured with a prefix stores remote
// keys relative to that prefix and restores it when addressing the backend.
package prefix

import "strings"

// Prefix is an optional, normalized key prefix.
//
// The zero value is the absent prefix: Strip and Prepend are no-ops.
type Prefix struct {
	s string
}

// New normalizes raw into a Prefix, appending a trailing "/" if one is
// missing. An empty string yields the absent prefix.
func New(raw string) Prefix {
	if raw == "" {
		return Prefix{}
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	return Prefix{s: raw}
}

// String returns the normalized prefix, or "" if absent.
func (p Prefix) String() string { return p.s }

// Empty reports whether no prefix was configured.
func (p Prefix) Empty() bool { return p.s == "" }

// Strip removes the prefix from target if target starts with it; otherwise
// target is returned unchanged. With an absent prefix, target is always
// returned unchanged.
func (p Prefix) Strip(target string) string {
	if p.s == "" {
		return target
	}
	if rest, ok := strings.CutPrefix(target, p.s); ok {
		return rest
	}
	return target
}

// Prepend returns the prefix concatenated with target, or target unchanged
// if no prefix was configured.
func (p Prefix) Prepend(target string) string {
	if p.s == "" {
		return target
	}
	return p.s + target
}
