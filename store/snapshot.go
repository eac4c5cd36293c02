// Package store implements the agent's in-memory project snapshot: a
// concurrent key → project map, a diff between a snapshot and a fresh
// remote listing, and the per-key application of a refresh's results.
//
// Reads never block; writes are exclusive per key. A refresh computes a
// diff against the current snapshot, fetches only the changed keys, and
// applies the fetched results — readers observe either the pre-refresh or
// post-refresh value of a key, never a partial one.
package store

import "sync"

// Entry is the generic project value a Snapshot stores. The store package
// is agnostic to what a project actually contains; callers parameterize
// it via the Hash accessor, which the diff algorithm needs to
// detect changes.
type Entry interface {
	// Hash returns the content hash used to detect changes, or nil if
	// the provider never supplies one (local, non-cloud providers).
	Hash() []byte
}

// Snapshot is the concurrent key → Entry map backing one agent.
//
// The zero value is ready to use.
type Snapshot struct {
	m sync.Map // string -> Entry
}

// Load returns the entry stored at key.
func (s *Snapshot) Load(key string) (Entry, bool) {
	v, ok := s.m.Load(key)
	if !ok {
		return nil, false
	}
	return v.(Entry), true
}

// Range calls fn for every key/entry pair currently in the snapshot. fn
// must not be retained past the call; Range offers no consistency
// guarantee across a concurrent Apply other than per-key atomicity.
func (s *Snapshot) Range(fn func(key string, e Entry) bool) {
	s.m.Range(func(k, v any) bool {
		return fn(k.(string), v.(Entry))
	})
}

// store writes entry at key, replacing any previous value atomically.
func (s *Snapshot) store(key string, entry Entry) {
	s.m.Store(key, entry)
}

// delete removes key, if present.
func (s *Snapshot) delete(key string) {
	s.m.Delete(key)
}
