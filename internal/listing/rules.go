package listing

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"lemoncrawl/internal/browser"
)

// Rule pulls one link out of one listing row. ok is false when the row has no link.
type Rule interface {
	Extract(row browser.Element) (link string, ok bool, err error)
}

// CellAnchor takes the href of the anchor inside the Index-th cell of a row,
// resolved against Base.
type CellAnchor struct {
	Cell   string
	Index  int
	Anchor string
	Base   string
}

func (r CellAnchor) Extract(row browser.Element) (string, bool, error) {
	cells, err := row.Query(r.Cell)
	if err != nil {
		return "", false, err
	}
	if len(cells) <= r.Index {
		return "", false, nil
	}
	anchor, err := browser.First(cells[r.Index], r.Anchor)
	if errors.Is(err, browser.ErrElementNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	href, ok, err := anchor.Attribute("href")
	if err != nil || !ok || strings.TrimSpace(href) == "" {
		return "", false, err
	}
	abs, err := Absolute(r.Base, href)
	if err != nil {
		return "", false, err
	}
	return abs, true, nil
}

// RowKey builds the link from a row attribute appended to Prefix.
type RowKey struct {
	Attr   string
	Prefix string
}

func (r RowKey) Extract(row browser.Element) (string, bool, error) {
	key, ok, err := row.Attribute(r.Attr)
	if err != nil || !ok || strings.TrimSpace(key) == "" {
		return "", false, err
	}
	return r.Prefix + strings.TrimSpace(key), true, nil
}

// Absolute resolves href against base unless it is already an absolute http(s) URL.
func Absolute(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href, nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid href %q: %w", href, err)
	}
	return b.ResolveReference(ref).String(), nil
}
