// Package catalogue turns a project bundle — a zipped archive or an
// unpacked directory tree of JSON decision documents plus an optional
// release manifest — into an immutable, lowercase-keyed lookup structure.
//
// A Catalogue never changes after construction; the agent that owns it
// always replaces the pointer rather than mutating it in place.
package catalogue

import "encoding/json"

// DecisionContent is one opaque decision document, addressed by its
// lowercased path inside the bundle. The content itself is never
// interpreted by this module — that is the evaluator's job; Content holds
// the full document exactly as it appeared in the bundle (meta field
// included), ready to be handed to the evaluator unmodified.
type DecisionContent struct {
	Meta    DecisionMeta
	Content json.RawMessage
}

// UnmarshalJSON parses a decision document, lifting out the optional
// "meta" field while keeping the whole document available as Content.
func (d *DecisionContent) UnmarshalJSON(b []byte) error {
	var aux struct {
		Meta DecisionMeta `json:"meta"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d.Meta = aux.Meta
	d.Content = append(json.RawMessage(nil), b...)
	return nil
}

// DecisionMeta carries the bundle-supplied metadata merged alongside a
// decision document's own content.
type DecisionMeta struct {
	VersionID *string `json:"versionId,omitempty"`
}

// ReleaseData is the release-identity and access-control record parsed
// from ".config/project.json" inside a bundle, if present.
type ReleaseData struct {
	Version      *string            `json:"version,omitempty"`
	Project      ReleaseDataProject `json:"project"`
	AccessTokens []string           `json:"accessTokens,omitempty"`
	Release      ReleaseDataRelease `json:"release"`
}

// ReleaseDataProject identifies the project a release belongs to.
type ReleaseDataProject struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// ReleaseDataRelease identifies one release of a project.
type ReleaseDataRelease struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}
