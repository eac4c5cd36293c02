// Package poison tracks content hashes of project bundles that are known to
// fail to load, so a refresh never retries a fetch that can only ever fail
// again. A malformed artifact's hash cannot become valid without the hash
// itself changing, so retrying it is pure waste and noisy in logs.
//
// The registry is process-wide, modeled on the sync.Map-backed cache in
// claircore's internal/cache package, simplified: entries are additive only
// and there is no eviction, since a poisoned hash never becomes un-poisoned.
package poison

import "sync"

// Registry is a concurrent set of opaque content-hash byte strings.
//
// The zero value is ready to use.
type Registry struct {
	m sync.Map
}

// global is the process-wide registry used by default, matching the
// single process-global set described by the spec this package implements.
var global Registry

// Insert records hash as belonging to a bundle known to fail to load.
func Insert(hash []byte) { global.Insert(hash) }

// HasFailed reports whether hash has previously been recorded. A nil or
// empty hash always reports false, since an absent content hash carries no
// identity to poison.
func HasFailed(hash []byte) bool { return global.HasFailed(hash) }

// Insert records hash in r.
func (r *Registry) Insert(hash []byte) {
	if len(hash) == 0 {
		return
	}
	r.m.Store(string(hash), struct{}{})
}

// HasFailed reports whether hash was previously recorded in r.
func (r *Registry) HasFailed(hash []byte) bool {
	if len(hash) == 0 {
		return false
	}
	_, ok := r.m.Load(string(hash))
	return ok
}
