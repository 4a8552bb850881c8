// Package fixture implements browser.Page over static HTML snapshots.
//
// Snapshots emulate the client-side behaviour the pipeline depends on:
//   - Redirects map a requested URL to the URL that is finally rendered.
//   - An element with data-fixture-goto="<url>" loads that snapshot when clicked,
//     which detaches every element of the previous snapshot (table re-render).
//   - An element with data-fixture-show="<name>" reveals the container marked
//     data-fixture-panel="<name>" when clicked. Panel contents are invisible to
//     queries until shown, and showing one panel hides the others.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"lemoncrawl/internal/browser"
)

const (
	attrGoto  = "data-fixture-goto"
	attrShow  = "data-fixture-show"
	attrPanel = "data-fixture-panel"

	maxRedirects = 10
)

// Site is a set of HTML snapshots keyed by URL.
type Site struct {
	Pages     map[string]string `json:"pages"`
	Redirects map[string]string `json:"redirects"`
}

// LoadSite reads dir/site.json, whose pages map URLs to HTML file names relative to dir.
func LoadSite(dir string) (Site, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "site.json"))
	if err != nil {
		return Site{}, fmt.Errorf("failed to read site manifest: %w", err)
	}
	var manifest Site
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return Site{}, fmt.Errorf("failed to decode site manifest: %w", err)
	}
	site := Site{Pages: make(map[string]string, len(manifest.Pages)), Redirects: manifest.Redirects}
	for url, file := range manifest.Pages {
		html, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			return Site{}, fmt.Errorf("failed to read snapshot for %s: %w", url, err)
		}
		site.Pages[url] = string(html)
	}
	return site, nil
}

// Page is an in-memory tab over a Site.
type Page struct {
	site        Site
	url         string
	doc         *goquery.Document
	generation  int
	panel       string
	navigations []string
}

var _ browser.Page = (*Page)(nil)

// New returns a tab showing an empty document.
func New(site Site) *Page {
	p := &Page{site: site}
	p.load("about:blank", "")
	return p
}

// Navigations returns every URL passed to Navigate, in order.
func (p *Page) Navigations() []string {
	return append([]string(nil), p.navigations...)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.navigations = append(p.navigations, url)

	final := url
	for i := 0; i < maxRedirects; i++ {
		next, ok := p.site.Redirects[final]
		if !ok {
			break
		}
		final = next
	}
	p.load(final, p.site.Pages[final])
	return nil
}

func (p *Page) load(url, html string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// The html tokenizer accepts any input; keep an empty document regardless.
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	p.url = url
	p.doc = doc
	p.generation++
	p.panel = ""
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	return p.url, ctx.Err()
}

func (p *Page) WaitFor(ctx context.Context, selector string, timeout time.Duration) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found := p.wrap(p.visible(p.doc.Find(selector)))
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s after %s", browser.ErrTimeout, selector, timeout)
	}
	return found, nil
}

func (p *Page) Query(ctx context.Context, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.wrap(p.visible(p.doc.Find(selector))), nil
}

func (p *Page) visible(sel *goquery.Selection) *goquery.Selection {
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		panel := s.Closest("[" + attrPanel + "]")
		if panel.Length() == 0 {
			return true
		}
		return panel.AttrOr(attrPanel, "") == p.panel
	})
}

func (p *Page) wrap(sel *goquery.Selection) []browser.Element {
	out := make([]browser.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &element{page: p, sel: s, generation: p.generation})
	})
	return out
}

type element struct {
	page       *Page
	sel        *goquery.Selection
	generation int
}

func (e *element) stale() bool {
	return e.generation != e.page.generation
}

func (e *element) detached() error {
	if e.stale() {
		return fmt.Errorf("stale element reference: %w", browser.ErrElementNotFound)
	}
	return nil
}

func (e *element) Text() (string, error) {
	if err := e.detached(); err != nil {
		return "", err
	}
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e *element) Attribute(name string) (string, bool, error) {
	if err := e.detached(); err != nil {
		return "", false, err
	}
	value, ok := e.sel.Attr(name)
	return value, ok, nil
}

func (e *element) Query(selector string) ([]browser.Element, error) {
	if err := e.detached(); err != nil {
		return nil, err
	}
	return e.page.wrap(e.page.visible(e.sel.Find(selector))), nil
}

func (e *element) Children(selector string) ([]browser.Element, error) {
	if err := e.detached(); err != nil {
		return nil, err
	}
	return e.page.wrap(e.page.visible(e.sel.ChildrenFiltered(selector))), nil
}

func (e *element) Click() error {
	if err := e.detached(); err != nil {
		return err
	}
	if target, ok := e.sel.Attr(attrGoto); ok {
		e.page.load(target, e.page.site.Pages[target])
		return nil
	}
	if panel, ok := e.sel.Attr(attrShow); ok {
		e.page.panel = panel
	}
	return nil
}

func (e *element) ScrollIntoView() error {
	return e.detached()
}

func (e *element) WaitStale(timeout time.Duration) error {
	if e.stale() {
		return nil
	}
	return fmt.Errorf("%w: element still attached after %s", browser.ErrTimeout, timeout)
}
