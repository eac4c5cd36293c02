package catalogue

import "strings"

// Catalogue holds one project's decisions keyed by lowercased in-bundle
// path, plus the optional release manifest parsed from
// ".config/project.json". It is immutable after construction; a Catalogue
// is always replaced wholesale, never mutated.
type Catalogue struct {
	decisions map[string]DecisionContent
	release   *ReleaseData
}

// New wraps decisions and an optional release manifest into a Catalogue.
// decisions must already be keyed by lowercased path; New does not
// re-normalize keys.
func New(decisions map[string]DecisionContent, release *ReleaseData) *Catalogue {
	if decisions == nil {
		decisions = map[string]DecisionContent{}
	}
	return &Catalogue{decisions: decisions, release: release}
}

// Load looks up the decision stored at path, lowercasing it first so
// callers never need to normalize case themselves.
func (c *Catalogue) Load(path string) (DecisionContent, bool) {
	d, ok := c.decisions[strings.ToLower(path)]
	return d, ok
}

// ReleaseData returns the project's release manifest, or nil if the bundle
// carried none.
func (c *Catalogue) ReleaseData() *ReleaseData {
	return c.release
}

// Version returns the versionId recorded against path's decision, if the
// decision exists and carries one.
func (c *Catalogue) Version(path string) (string, bool) {
	d, ok := c.Load(path)
	if !ok || d.Meta.VersionID == nil {
		return "", false
	}
	return *d.Meta.VersionID, true
}

// CanAccess reports whether token is authorized against the catalogue's
// release data.
//
// A catalogue with no release data is an open project: every token,
// including the empty one, is granted access. A catalogue with release
// data grants access only to tokens present in its AccessTokens list; an
// empty AccessTokens list therefore denies every token, empty included.
func (c *Catalogue) CanAccess(token string) bool {
	if c.release == nil {
		return true
	}
	for _, t := range c.release.AccessTokens {
		if t == token {
			return true
		}
	}
	return false
}
