package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lemoncrawl/internal/browser/fixture"
	"lemoncrawl/internal/config"
	"lemoncrawl/internal/domain"
	"lemoncrawl/internal/output"
	"lemoncrawl/internal/storage"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	c, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)

	dir := t.TempDir()
	c.ReviewLinksFile = filepath.Join(dir, "review_urls.txt")
	c.SessionLinksFile = filepath.Join(dir, "1_1_urls.txt")
	c.ReviewsDir = filepath.Join(dir, "shared_reviews")
	c.SessionsDir = filepath.Join(dir, "one_on_one_sessions")
	c.WaitTimeout = time.Second
	c.RedirectSettle = 0
	c.MeetingSettle = 0
	return c
}

const reviewListing = `<html><body><table><tbody>
<tr class="ant-table-row"><td>2024 H1</td><td><a href="/app/reviews/r1">Mid-year</a></td></tr>
<tr class="ant-table-row"><td>2024 H1</td><td><a href="/app/reviews/r2">Peer</a></td></tr>
<tr class="ant-table-row"><td>2024 H1</td><td>no link</td></tr>
</tbody></table>
<ul class="ant-pagination"><li class="ant-pagination-next" aria-disabled="true"><button>&gt;</button></li></ul>
</body></html>`

const sessionListing = `<html><body><table><tbody>
<tr class="ant-table-row" data-row-key="s1"><td>Kim</td></tr>
<tr class="ant-table-row" data-row-key="s2"><td>Lee</td></tr>
</tbody></table></body></html>`

func TestCollectLinks_Reviews(t *testing.T) {
	c := testConfig(t)
	page := fixture.New(fixture.Site{Pages: map[string]string{
		c.Resolve(c.ReviewsURL): reviewListing,
	}})

	links, err := collectLinks(context.Background(), c, page, domain.ItemReview, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, []domain.EntityLink{
		{URL: "https://lemonbase.com/app/reviews/r1"},
		{URL: "https://lemonbase.com/app/reviews/r2"},
	}, links)

	saved, err := output.ReadLinks(c.ReviewLinksFile)
	require.NoError(t, err)
	assert.Equal(t, links, saved)
}

func TestCollectLinks_Sessions(t *testing.T) {
	c := testConfig(t)
	page := fixture.New(fixture.Site{Pages: map[string]string{
		c.Resolve(c.OneOnOneURL): sessionListing,
	}})

	links, err := collectLinks(context.Background(), c, page, domain.ItemSession, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, []domain.EntityLink{
		{URL: "https://lemonbase.com/app/one-on-one/s1"},
		{URL: "https://lemonbase.com/app/one-on-one/s2"},
	}, links)

	raw, err := os.ReadFile(c.SessionLinksFile)
	require.NoError(t, err)
	assert.Equal(t, "https://lemonbase.com/app/one-on-one/s1\nhttps://lemonbase.com/app/one-on-one/s2\n", string(raw))
}

func TestCollectLinks_EmptyListingFails(t *testing.T) {
	c := testConfig(t)
	page := fixture.New(fixture.Site{})

	_, err := collectLinks(context.Background(), c, page, domain.ItemReview, quietLogger())
	assert.Error(t, err)
	_, statErr := os.Stat(c.ReviewLinksFile)
	assert.True(t, os.IsNotExist(statErr), "no link list is written for a failed listing")
}

func TestReviewProcessor_DefaultConfig(t *testing.T) {
	c := testConfig(t)
	page := fixture.New(fixture.Site{
		Pages: map[string]string{
			"https://lemonbase.com/app/reviews/r1/shared-review": `<html><body>
<div class="css-tojoty"><div class="typography-headline6 grow">H1</div></div>
<div class="css-1veelxu">Body</div></body></html>`,
		},
		Redirects: map[string]string{
			"https://lemonbase.com/app/reviews/r1": "https://lemonbase.com/app/reviews/r1/shared-review",
		},
	})
	ledger, err := storage.NewBadgerLedger("", quietLogger())
	require.NoError(t, err)
	defer ledger.Close()

	store := newStore(c, quietLogger())
	proc := newReviewProcessor(c, page, store, ledger, "run-1", quietLogger())
	summary := proc.Process(context.Background(), []domain.EntityLink{{URL: "https://lemonbase.com/app/reviews/r1"}})
	assert.Equal(t, 1, summary.Saved)

	raw, err := os.ReadFile(store.ReviewPath("r1"))
	require.NoError(t, err)
	assert.Equal(t, "[Headline]\nH1\n---\nBody\n---\n", string(raw))
}

func TestSessionExtractor_DefaultConfig(t *testing.T) {
	c := testConfig(t)
	url := "https://lemonbase.com/app/one-on-one/s1"
	page := fixture.New(fixture.Site{Pages: map[string]string{url: `<html><body>
<div class="typography-body2-bold text-secondary css-avbo3m essl35z0" data-fixture-show="m1">2024.05.01</div>
<div data-fixture-panel="m1">
  <div data-rbd-draggable-context-id="1" data-rbd-draggable-id="x">
    <div>Hello</div>
    <div><textarea placeholder="코멘트 입력"></textarea></div>
  </div>
</div></body></html>`}})

	store := newStore(c, quietLogger())
	ex := newSessionExtractor(c, page, store, storage.NopRecorder{}, "run-1", quietLogger())
	status, err := ex.ProcessOne(context.Background(), domain.EntityLink{URL: url})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSaved, status)

	raw, err := os.ReadFile(store.SessionPath("s1"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"meeting_date":"2024.05.01","conversations":[
		{"block_index":0,"child_index":0,"text":"Hello","avatar_url":""}]}]`, string(raw))
}

func TestFormatter(t *testing.T) {
	assert.IsType(t, &logrus.JSONFormatter{}, formatter("json", true))
	assert.IsType(t, &logrus.TextFormatter{}, formatter("text", false))
	assert.IsType(t, &logrus.TextFormatter{}, formatter("auto", true))
	assert.IsType(t, &logrus.JSONFormatter{}, formatter("auto", false))
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := newLogger(config.Config{LogLevel: "chatty"})
	assert.Error(t, err)
}

func TestCredentials(t *testing.T) {
	noPrompt := func() (string, error) {
		t.Fatal("password prompt must not be used")
		return "", nil
	}

	t.Run("from config", func(t *testing.T) {
		var out bytes.Buffer
		creds, err := credentials(config.Config{Email: "a@b.c", Password: "pw"}, strings.NewReader(""), &out, noPrompt)
		require.NoError(t, err)
		assert.Equal(t, "a@b.c", creds.Email)
		assert.Equal(t, "pw", creds.Password)
		assert.Empty(t, out.String())
	})

	t.Run("prompts for missing values", func(t *testing.T) {
		var out bytes.Buffer
		creds, err := credentials(config.Config{}, strings.NewReader("  me@corp.test \n"), &out,
			func() (string, error) { return "secret", nil })
		require.NoError(t, err)
		assert.Equal(t, "me@corp.test", creds.Email)
		assert.Equal(t, "secret", creds.Password)
		assert.Contains(t, out.String(), "Lemonbase email: ")
	})

	t.Run("password reader error", func(t *testing.T) {
		_, err := credentials(config.Config{Email: "a@b.c"}, strings.NewReader(""), io.Discard,
			func() (string, error) { return "", errors.New("not a terminal") })
		assert.ErrorContains(t, err, "not a terminal")
	})

	t.Run("empty email", func(t *testing.T) {
		_, err := credentials(config.Config{Password: "pw"}, strings.NewReader("\n"), io.Discard, noPrompt)
		assert.Error(t, err)
	})
}

func TestWriteAttemptsTable(t *testing.T) {
	var buf bytes.Buffer
	writeAttemptsTable(&buf, []domain.ItemAttempt{{
		Kind:      domain.ItemSession,
		ID:        "s1",
		Status:    domain.StatusPartial,
		Attempts:  2,
		LastError: "meeting 1: timeout\nmeeting 2: timeout",
		UpdatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}})
	got := buf.String()
	assert.Contains(t, got, "s1")
	assert.Contains(t, got, "partial")
	assert.Contains(t, got, "meeting 1: timeout; meeting 2: timeout")

	buf.Reset()
	writeAttemptsTable(&buf, nil)
	assert.Contains(t, buf.String(), "(no items)")
}
