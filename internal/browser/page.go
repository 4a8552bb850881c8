package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout means a DOM condition did not hold within its bound.
	ErrTimeout = errors.New("timed out waiting for page condition")

	// ErrElementNotFound means a best-effort query matched nothing.
	ErrElementNotFound = errors.New("element not found")
)

// Page is the navigator the extraction pipeline drives.
// Implementations wrap an already authenticated browser tab.
type Page interface {
	// Navigate loads url in the tab.
	Navigate(ctx context.Context, url string) error

	// CurrentURL returns the URL the tab currently shows, after any client-side redirect.
	CurrentURL(ctx context.Context) (string, error)

	// WaitFor polls until at least one element matches selector and returns all matches.
	// It returns ErrTimeout when nothing matched within timeout.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) ([]Element, error)

	// Query returns the current matches for selector without waiting. No match is not an error.
	Query(ctx context.Context, selector string) ([]Element, error)
}

// Element is a handle to a node in the live DOM.
type Element interface {
	// Text returns the rendered text, trimmed.
	Text() (string, error)

	// Attribute returns the attribute value and whether it is present.
	Attribute(name string) (string, bool, error)

	// Query returns descendants matching selector.
	Query(selector string) ([]Element, error)

	// Children returns direct children matching selector.
	Children(selector string) ([]Element, error)

	// Click dispatches a programmatic click, which works through overlays.
	Click() error

	// ScrollIntoView scrolls the element into the viewport.
	ScrollIntoView() error

	// WaitStale waits until the element is detached from the document.
	WaitStale(timeout time.Duration) error
}

// Settle sleeps for d unless ctx is done first. It covers client-side state changes
// that no DOM condition reports, such as redirects and panel swaps.
func Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// First returns the first descendant of el matching selector, or ErrElementNotFound.
func First(el Element, selector string) (Element, error) {
	found, err := el.Query(selector)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrElementNotFound
	}
	return found[0], nil
}
