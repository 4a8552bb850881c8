package fixture

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lemoncrawl/internal/browser"
)

const home = `<html><body>
<a id="next" data-fixture-goto="https://site.test/two">next</a>
<p class="msg">one</p>
<button data-fixture-show="a">A</button>
<div data-fixture-panel="a"><p class="msg">panel a</p></div>
<div data-fixture-panel="b"><p class="msg">panel b</p></div>
</body></html>`

func testSite() Site {
	return Site{
		Pages: map[string]string{
			"https://site.test/one": home,
			"https://site.test/two": `<html><body><p class="msg">two</p></body></html>`,
		},
		Redirects: map[string]string{
			"https://site.test/":      "https://site.test/start",
			"https://site.test/start": "https://site.test/one",
		},
	}
}

func texts(t *testing.T, els []browser.Element) []string {
	t.Helper()
	out := make([]string, 0, len(els))
	for _, el := range els {
		s, err := el.Text()
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func TestPage_FollowsRedirects(t *testing.T) {
	ctx := context.Background()
	p := New(testSite())
	require.NoError(t, p.Navigate(ctx, "https://site.test/"))

	url, err := p.CurrentURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://site.test/one", url)
	assert.Equal(t, []string{"https://site.test/"}, p.Navigations())
}

func TestPage_PanelsHiddenUntilShown(t *testing.T) {
	ctx := context.Background()
	p := New(testSite())
	require.NoError(t, p.Navigate(ctx, "https://site.test/one"))

	msgs, err := p.Query(ctx, "p.msg")
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, texts(t, msgs))

	btn, err := p.WaitFor(ctx, "button", 0)
	require.NoError(t, err)
	require.NoError(t, btn[0].Click())

	msgs, err = p.Query(ctx, "p.msg")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "panel a"}, texts(t, msgs))
}

func TestPage_GotoDetachesOldElements(t *testing.T) {
	ctx := context.Background()
	p := New(testSite())
	require.NoError(t, p.Navigate(ctx, "https://site.test/one"))

	old, err := p.WaitFor(ctx, "p.msg", 0)
	require.NoError(t, err)
	assert.ErrorIs(t, old[0].WaitStale(0), browser.ErrTimeout)

	next, err := p.Query(ctx, "#next")
	require.NoError(t, err)
	require.Len(t, next, 1)
	require.NoError(t, next[0].Click())

	assert.NoError(t, old[0].WaitStale(0))
	_, err = old[0].Text()
	assert.ErrorIs(t, err, browser.ErrElementNotFound)

	url, _ := p.CurrentURL(ctx)
	assert.Equal(t, "https://site.test/two", url)
	assert.Len(t, p.Navigations(), 1, "clicks are not navigations")
}

func TestPage_WaitForMissing(t *testing.T) {
	p := New(testSite())
	_, err := p.WaitFor(context.Background(), "p.msg", 0)
	assert.ErrorIs(t, err, browser.ErrTimeout)
}

func TestPage_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(testSite())
	assert.ErrorIs(t, p.Navigate(ctx, "https://site.test/one"), context.Canceled)
	assert.Empty(t, p.Navigations())
}

func TestLoadSite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.html"), []byte(home), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.json"), []byte(`{
  "pages": {"https://site.test/one": "one.html"},
  "redirects": {"https://site.test/": "https://site.test/one"}
}`), 0o644))

	site, err := LoadSite(dir)
	require.NoError(t, err)
	assert.Equal(t, home, site.Pages["https://site.test/one"])
	assert.Equal(t, "https://site.test/one", site.Redirects["https://site.test/"])

	_, err = LoadSite(t.TempDir())
	assert.Error(t, err)
}
