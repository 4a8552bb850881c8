// Package classify assigns a resolved entity URL to a page kind.
package classify

import (
	"errors"
	"strings"

	"lemoncrawl/internal/domain"
)

// ErrUnknownKind reports a resolved URL that matched neither marker.
var ErrUnknownKind = errors.New("resolved url matches no known page kind")

// Markers are the literal substrings that identify each kind.
type Markers struct {
	Draft  string
	Shared string
}

// Classifier is a pure substring classifier. Draft is checked before shared.
type Classifier struct {
	markers Markers
}

// New returns a Classifier for the given markers.
func New(markers Markers) Classifier {
	return Classifier{markers: markers}
}

// Classify returns the kind of url.
func (c Classifier) Classify(url string) domain.PageKind {
	switch {
	case c.markers.Draft != "" && strings.Contains(url, c.markers.Draft):
		return domain.KindDraft
	case c.markers.Shared != "" && strings.Contains(url, c.markers.Shared):
		return domain.KindShared
	default:
		return domain.KindUnknown
	}
}

// Resolve builds the ResolvedPage for a settled URL.
func (c Classifier) Resolve(finalURL string) domain.ResolvedPage {
	return domain.ResolvedPage{FinalURL: finalURL, Kind: c.Classify(finalURL)}
}
