package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/sirupsen/logrus"
)

const stalePollInterval = 100 * time.Millisecond

// RodPage implements Page on top of a rod tab.
type RodPage struct {
	page       *rod.Page
	navTimeout time.Duration
	log        logrus.FieldLogger
}

// NewRodPage wraps an open rod page.
func NewRodPage(page *rod.Page, navTimeout time.Duration, logger logrus.FieldLogger) *RodPage {
	return &RodPage{
		page:       page,
		navTimeout: navTimeout,
		log:        logger.WithField("component", "navigator"),
	}
}

// Navigate loads url and waits for the document load event.
func (p *RodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx).Timeout(p.navTimeout)
	defer pg.CancelTimeout()

	p.log.WithField("url", url).Debug("Navigating")
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, translate(err))
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("failed waiting for page load of %s: %w", url, translate(err))
	}
	return nil
}

// CurrentURL reads the tab's URL from the target info, which reflects client-side redirects.
func (p *RodPage) CurrentURL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to read current url: %w", err)
	}
	return info.URL, nil
}

// WaitFor waits until selector matches at least one element.
func (p *RodPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) ([]Element, error) {
	pg := p.page.Context(ctx).Timeout(timeout)
	_, err := pg.Element(selector)
	pg.CancelTimeout()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, selector, timeout)
		}
		return nil, fmt.Errorf("failed waiting for %s: %w", selector, err)
	}
	// Re-query on the untimed page so the handles outlive the wait's deadline.
	els, err := p.Query(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		// The matches were detached between the wait and the re-query.
		return nil, fmt.Errorf("%w: %s detached before it could be read", ErrTimeout, selector)
	}
	return els, nil
}

// Query returns the current matches for selector.
func (p *RodPage) Query(ctx context.Context, selector string) ([]Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", selector, err)
	}
	return wrapElements(els), nil
}

// Login fills and submits the login form, then waits for the app to leave the login page.
func (p *RodPage) Login(ctx context.Context, creds Credentials, opts LoginOptions) error {
	log := p.log.WithField("url", opts.URL)
	log.Info("Logging in")

	if err := p.Navigate(ctx, opts.URL); err != nil {
		return err
	}
	if _, err := p.WaitFor(ctx, opts.EmailSelector, opts.Timeout); err != nil {
		return fmt.Errorf("login form did not render: %w", err)
	}

	pg := p.page.Context(ctx)
	email, err := pg.Element(opts.EmailSelector)
	if err != nil {
		return fmt.Errorf("failed to find email input: %w", err)
	}
	password, err := pg.Element(opts.PasswordSelector)
	if err != nil {
		return fmt.Errorf("failed to find password input: %w", err)
	}
	if err := fill(email, creds.Email); err != nil {
		return fmt.Errorf("failed to enter email: %w", err)
	}
	if err := fill(password, creds.Password); err != nil {
		return fmt.Errorf("failed to enter password: %w", err)
	}
	if err := password.Type(input.Enter); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}

	deadline := time.Now().Add(opts.Timeout)
	for {
		current, err := p.CurrentURL(ctx)
		if err == nil && current != opts.URL {
			log.WithField("landed_on", current).Info("Login successful")
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: still on login page after %s", ErrTimeout, opts.Timeout)
		}
		if err := Settle(ctx, stalePollInterval); err != nil {
			return err
		}
	}
}

func fill(el *rod.Element, value string) error {
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}

// rodElement implements Element for a rod element handle.
type rodElement struct {
	el *rod.Element
}

func wrapElements(els rod.Elements) []Element {
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out
}

func (e *rodElement) Text() (string, error) {
	text, err := e.el.Text()
	if err != nil {
		return "", fmt.Errorf("failed to read element text: %w", translate(err))
	}
	return strings.TrimSpace(text), nil
}

func (e *rodElement) Attribute(name string) (string, bool, error) {
	value, err := e.el.Attribute(name)
	if err != nil {
		return "", false, fmt.Errorf("failed to read attribute %s: %w", name, translate(err))
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

func (e *rodElement) Query(selector string) ([]Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", selector, translate(err))
	}
	return wrapElements(els), nil
}

func (e *rodElement) Children(selector string) ([]Element, error) {
	return e.Query(":scope > " + selector)
}

func (e *rodElement) Click() error {
	if _, err := e.el.Eval(`() => this.click()`); err != nil {
		return fmt.Errorf("failed to click element: %w", translate(err))
	}
	return nil
}

func (e *rodElement) ScrollIntoView() error {
	if err := e.el.ScrollIntoView(); err != nil {
		return fmt.Errorf("failed to scroll element into view: %w", translate(err))
	}
	return nil
}

// WaitStale polls isConnected. A handle whose remote object is gone counts as stale.
func (e *rodElement) WaitStale(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		res, err := e.el.Eval(`() => this.isConnected`)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}
		if !res.Value.Bool() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: element still attached after %s", ErrTimeout, timeout)
		}
		if err := Settle(e.el.GetContext(), stalePollInterval); err != nil {
			return err
		}
	}
}

func translate(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var notFound *rod.ElementNotFoundError
	if errors.As(err, &notFound) {
		return ErrElementNotFound
	}
	return err
}
