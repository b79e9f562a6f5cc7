// Package avatar turns stored avatar references into displayable URLs.
package avatar

import "strings"

// Kind tags the variant held by a Ref.
type Kind int

const (
	KindNone Kind = iota
	KindURL
	KindStoragePath
)

// Ref is a parsed avatar reference: either a direct URL or a path inside
// object storage.
type Ref struct {
	Kind  Kind
	Value string
}

// ParseRef classifies a raw stored reference.
func ParseRef(raw string) Ref {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return Ref{Kind: KindNone}
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return Ref{Kind: KindURL, Value: raw}
	default:
		return Ref{Kind: KindStoragePath, Value: raw}
	}
}
