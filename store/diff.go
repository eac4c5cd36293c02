package store

import "bytes"

// DiffKind classifies one entry of a Diff.
type DiffKind int

const (
	// Created means the key is present in the new listing but not the
	// current snapshot.
	Created DiffKind = iota
	// Updated means the key is present in both, with a differing hash.
	Updated
	// Removed means the key is present in the current snapshot but not
	// the new listing.
	Removed
)

func (k DiffKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is one element of a Diff.
type Change struct {
	Kind DiffKind
	Key  string
}

// Diff is the ordered set of changes produced by CalculateDiff. Order
// between Created/Updated/Removed entries is not significant; callers
// process them in whatever order suits the provider's fetch strategy.
type Diff []Change

// Listed is one remote artifact as reported by a provider's listing
// step: a key and an optional content hash used to detect changes.
type Listed struct {
	Key  string
	Hash []byte
}

// CalculateDiff compares the current snapshot against a fresh remote
// listing and returns the sequence of changes needed to bring the
// snapshot in line with it.
//
// A key present in the snapshot but absent from listing is Removed. A
// key present in listing but absent from the snapshot is Created. A key
// present in both is Updated only if its hash differs from the stored
// entry's hash; two nil/empty hashes are treated as equal, which is how
// local, non-cloud providers (which never report a hash) produce no
// spurious Updated events on every refresh.
func CalculateDiff(snap *Snapshot, listing []Listed) Diff {
	var diff Diff

	seen := make(map[string]struct{}, len(listing))
	for _, l := range listing {
		seen[l.Key] = struct{}{}

		existing, ok := snap.Load(l.Key)
		switch {
		case !ok:
			diff = append(diff, Change{Kind: Created, Key: l.Key})
		case !hashEqual(existing.Hash(), l.Hash):
			diff = append(diff, Change{Kind: Updated, Key: l.Key})
		}
	}

	snap.Range(func(key string, _ Entry) bool {
		if _, ok := seen[key]; !ok {
			diff = append(diff, Change{Kind: Removed, Key: key})
		}
		return true
	})

	return diff
}

func hashEqual(a, b []byte) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return bytes.Equal(a, b)
}

// Apply applies diff to snap using the results in fetched, which maps
// the key of every Created/Updated change that was successfully fetched
// to its new Entry. A Created/Updated key missing from fetched (its
// fetch failed or was skipped) is removed from the snapshot if present,
// rather than left stale or half-applied. Every Removed change deletes
// its key unconditionally.
//
// Apply returns the subset of diff that was actually applied — a
// Created/Updated change whose fetch failed is dropped from the
// returned Diff, since from the snapshot's perspective nothing changed
// for that key (unless it existed before and is now gone, which is
// reported as Removed instead).
func Apply(snap *Snapshot, diff Diff, fetched map[string]Entry) Diff {
	applied := make(Diff, 0, len(diff))

	for _, ch := range diff {
		switch ch.Kind {
		case Created, Updated:
			entry, ok := fetched[ch.Key]
			if !ok {
				if _, existed := snap.Load(ch.Key); existed {
					snap.delete(ch.Key)
					applied = append(applied, Change{Kind: Removed, Key: ch.Key})
				}
				continue
			}
			snap.store(ch.Key, entry)
			applied = append(applied, ch)
		case Removed:
			snap.delete(ch.Key)
			applied = append(applied, ch)
		}
	}

	return applied
}
