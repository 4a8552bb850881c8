package listing

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lemoncrawl/internal/browser"
	"lemoncrawl/internal/browser/fixture"
	"lemoncrawl/internal/domain"
)

const (
	base  = "https://app.test"
	page1 = base + "/app/reviews?page=1"
	page2 = base + "/app/reviews?page=2"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func testOptions() Options {
	return Options{
		RowSelector:        "tr.ant-table-row",
		NextSelector:       "ul.ant-pagination li.ant-pagination-next",
		NextButtonSelector: "button",
		DisabledAttr:       "aria-disabled",
		Timeout:            time.Second,
	}
}

func reviewRule() Rule {
	return CellAnchor{Cell: "td", Index: 1, Anchor: "a", Base: base}
}

const firstPage = `<html><body>
<table><tbody>
<tr class="ant-table-row" data-row-key="k1"><td>Q1</td><td><a href="/app/reviews/r1">Review 1</a></td></tr>
<tr class="ant-table-row" data-row-key="k2"><td>Q1</td><td><a href="https://app.test/app/reviews/r2">Review 2</a></td></tr>
</tbody></table>
<ul class="ant-pagination">
<li class="ant-pagination-next" aria-disabled="false"><button data-fixture-goto="` + page2 + `">&gt;</button></li>
</ul>
</body></html>`

const lastPage = `<html><body>
<table><tbody>
<tr class="ant-table-row" data-row-key="k3"><td>Q2</td><td><a href="/app/reviews/r3">Review 3</a></td></tr>
<tr class="ant-table-row" data-row-key="k4"><td>Q2</td><td><a href="/app/reviews/r4/">Review 4</a></td></tr>
</tbody></table>
<ul class="ant-pagination">
<li class="ant-pagination-next" aria-disabled="true"><button>&gt;</button></li>
</ul>
</body></html>`

func urls(links []domain.EntityLink) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.URL)
	}
	return out
}

func TestPaginator_CollectsPagesInOrder(t *testing.T) {
	page := fixture.New(fixture.Site{Pages: map[string]string{page1: firstPage, page2: lastPage}})
	p := NewPaginator(page, testOptions(), testLogger())

	links, err := p.Collect(context.Background(), page1, reviewRule())
	require.NoError(t, err)
	assert.Equal(t, []string{
		base + "/app/reviews/r1",
		base + "/app/reviews/r2",
		base + "/app/reviews/r3",
		base + "/app/reviews/r4/",
	}, urls(links))
	assert.Equal(t, []string{page1}, page.Navigations(), "paging must happen by clicking, not navigating")
}

func TestPaginator_RowKeyRule(t *testing.T) {
	page := fixture.New(fixture.Site{Pages: map[string]string{page1: firstPage, page2: lastPage}})
	opts := testOptions()
	opts.RowSelector = "tr.ant-table-row[data-row-key]"
	p := NewPaginator(page, opts, testLogger())

	links, err := p.Collect(context.Background(), page1, RowKey{Attr: "data-row-key", Prefix: base + "/app/one-on-one/"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		base + "/app/one-on-one/k1",
		base + "/app/one-on-one/k2",
		base + "/app/one-on-one/k3",
		base + "/app/one-on-one/k4",
	}, urls(links))
}

func TestPaginator_NoRowsFails(t *testing.T) {
	page := fixture.New(fixture.Site{Pages: map[string]string{page1: `<html><body><p>empty</p></body></html>`}})
	p := NewPaginator(page, testOptions(), testLogger())

	links, err := p.Collect(context.Background(), page1, reviewRule())
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrTimeout)
	assert.Empty(t, links)
}

func TestPaginator_StopsWithoutNextControl(t *testing.T) {
	single := `<html><body><table><tbody>
<tr class="ant-table-row"><td>a</td><td><a href="/x/1">1</a></td></tr>
</tbody></table></body></html>`
	page := fixture.New(fixture.Site{Pages: map[string]string{page1: single}})
	p := NewPaginator(page, testOptions(), testLogger())

	links, err := p.Collect(context.Background(), page1, reviewRule())
	require.NoError(t, err)
	assert.Equal(t, []string{base + "/x/1"}, urls(links))
}

func TestPaginator_StopsWhenTableDoesNotRerender(t *testing.T) {
	// The next button is enabled but clicking it changes nothing.
	stuck := `<html><body><table><tbody>
<tr class="ant-table-row"><td>a</td><td><a href="/x/1">1</a></td></tr>
</tbody></table>
<ul class="ant-pagination"><li class="ant-pagination-next" aria-disabled="false"><button>&gt;</button></li></ul>
</body></html>`
	page := fixture.New(fixture.Site{Pages: map[string]string{page1: stuck}})
	p := NewPaginator(page, testOptions(), testLogger())

	links, err := p.Collect(context.Background(), page1, reviewRule())
	require.NoError(t, err)
	assert.Equal(t, []string{base + "/x/1"}, urls(links))
}

func TestPaginator_SkipsRowsWithoutLink(t *testing.T) {
	html := `<html><body><table><tbody>
<tr class="ant-table-row"><td>only one cell</td></tr>
<tr class="ant-table-row"><td>a</td><td>no anchor</td></tr>
<tr class="ant-table-row"><td>a</td><td><a href="/x/2">2</a></td></tr>
</tbody></table></body></html>`
	page := fixture.New(fixture.Site{Pages: map[string]string{page1: html}})
	p := NewPaginator(page, testOptions(), testLogger())

	links, err := p.Collect(context.Background(), page1, reviewRule())
	require.NoError(t, err)
	assert.Equal(t, []string{base + "/x/2"}, urls(links))
}

func TestAbsolute(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"/app/reviews/r1", base + "/app/reviews/r1"},
		{"https://other.test/a", "https://other.test/a"},
		{"  /trimmed ", base + "/trimmed"},
	}
	for _, tt := range tests {
		got, err := Absolute(base, tt.href)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.href)
	}
}

// detachingPage serves a fixture but, after the first realWaits calls, reports
// WaitFor matches that were detached before they could be read.
type detachingPage struct {
	*fixture.Page
	realWaits int
	calls     int
}

func (p *detachingPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) ([]browser.Element, error) {
	p.calls++
	if p.calls > p.realWaits {
		return []browser.Element{}, nil
	}
	return p.Page.WaitFor(ctx, selector, timeout)
}

func TestPaginator_EmptyFirstPageWaitIsAnError(t *testing.T) {
	page := &detachingPage{Page: fixture.New(fixture.Site{Pages: map[string]string{page1: firstPage, page2: lastPage}})}
	p := NewPaginator(page, testOptions(), testLogger())

	var links []domain.EntityLink
	var err error
	require.NotPanics(t, func() {
		links, err = p.Collect(context.Background(), page1, reviewRule())
	})
	assert.ErrorIs(t, err, browser.ErrTimeout)
	assert.Empty(t, links)
}

func TestPaginator_EmptyLaterPageWaitKeepsCollected(t *testing.T) {
	page := &detachingPage{
		Page:      fixture.New(fixture.Site{Pages: map[string]string{page1: firstPage, page2: lastPage}}),
		realWaits: 1,
	}
	p := NewPaginator(page, testOptions(), testLogger())

	var links []domain.EntityLink
	var err error
	require.NotPanics(t, func() {
		links, err = p.Collect(context.Background(), page1, reviewRule())
	})
	require.NoError(t, err)
	assert.Equal(t, []string{base + "/app/reviews/r1", base + "/app/reviews/r2"}, urls(links))
}
