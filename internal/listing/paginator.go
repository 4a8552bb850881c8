package listing

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"lemoncrawl/internal/browser"
	"lemoncrawl/internal/domain"
)

// Options are the listing selectors and the wait bound.
type Options struct {
	RowSelector        string
	NextSelector       string
	NextButtonSelector string
	DisabledAttr       string
	Timeout            time.Duration
}

// Paginator walks a paged table and collects one link per row.
type Paginator struct {
	page browser.Page
	opts Options
	log  logrus.FieldLogger
}

// NewPaginator creates a paginator driving page.
func NewPaginator(page browser.Page, opts Options, logger logrus.FieldLogger) *Paginator {
	return &Paginator{
		page: page,
		opts: opts,
		log:  logger.WithField("component", "paginator"),
	}
}

// Collect returns the links of every row on every page, in page-then-row order.
// It fails only when the first page renders no rows.
func (p *Paginator) Collect(ctx context.Context, listingURL string, rule Rule) ([]domain.EntityLink, error) {
	log := p.log.WithField("url", listingURL)

	if err := p.page.Navigate(ctx, listingURL); err != nil {
		return nil, err
	}

	var links []domain.EntityLink
	for pageNo := 1; ; pageNo++ {
		if err := ctx.Err(); err != nil {
			return links, err
		}
		log := log.WithField("page", pageNo)

		rows, err := p.page.WaitFor(ctx, p.opts.RowSelector, p.opts.Timeout)
		if err == nil && len(rows) == 0 {
			err = fmt.Errorf("%w: %s matched no rows", browser.ErrTimeout, p.opts.RowSelector)
		}
		if err != nil {
			if pageNo == 1 {
				log.WithError(err).Error("Listing rendered no rows")
				return nil, fmt.Errorf("listing %s has no rows: %w", listingURL, err)
			}
			log.WithError(err).Warn("Rows did not render after paging, keeping what was collected")
			return links, nil
		}

		for i, row := range rows {
			link, ok, err := rule.Extract(row)
			if err != nil {
				log.WithError(err).WithField("row", i).Warn("Failed to extract link from row")
				continue
			}
			if ok {
				links = append(links, domain.EntityLink{URL: link})
			}
		}
		log.WithFields(logrus.Fields{"rows": len(rows), "total": len(links)}).Info("Collected listing page")

		if !p.advance(ctx, log, rows[0]) {
			return links, nil
		}
	}
}

// advance clicks the next-page control and waits for the table to re-render.
// Any failure on the way counts as the last page.
func (p *Paginator) advance(ctx context.Context, log logrus.FieldLogger, firstRow browser.Element) bool {
	next, err := p.page.Query(ctx, p.opts.NextSelector)
	if err != nil || len(next) == 0 {
		log.WithError(err).Debug("No next-page control, stopping")
		return false
	}
	disabled, _, err := next[0].Attribute(p.opts.DisabledAttr)
	if err != nil {
		log.WithError(err).Debug("Could not read next-page state, stopping")
		return false
	}
	if disabled == "true" {
		log.Debug("Next-page control disabled, last page reached")
		return false
	}
	button, err := browser.First(next[0], p.opts.NextButtonSelector)
	if err != nil {
		log.WithError(err).Debug("No next-page button, stopping")
		return false
	}
	if err := button.Click(); err != nil {
		log.WithError(err).Warn("Failed to click next-page button, stopping")
		return false
	}
	if err := firstRow.WaitStale(p.opts.Timeout); err != nil {
		log.WithError(err).Warn("Table did not re-render after paging, stopping")
		return false
	}
	return true
}
