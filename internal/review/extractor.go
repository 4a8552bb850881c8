// Package review resolves review links and extracts shared reviews as flat text.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"lemoncrawl/internal/browser"
	"lemoncrawl/internal/domain"
)

// Options are the shared review selectors and wait bound.
type Options struct {
	BodySelector     string
	HeadlineSelector string
	SharedMarker     string
	Timeout          time.Duration
}

// Extractor pulls a SharedRecord out of a rendered shared review page.
type Extractor struct {
	page browser.Page
	opts Options
	log  logrus.FieldLogger
}

// NewExtractor creates an Extractor reading from page.
func NewExtractor(page browser.Page, opts Options, logger logrus.FieldLogger) *Extractor {
	return &Extractor{
		page: page,
		opts: opts,
		log:  logger.WithField("component", "review_extractor"),
	}
}

// Extract reads the page the tab currently shows. resolved must be of kind shared.
func (e *Extractor) Extract(ctx context.Context, resolved domain.ResolvedPage) (domain.SharedRecord, error) {
	rec := domain.SharedRecord{ID: RecordID(resolved.FinalURL, e.opts.SharedMarker)}
	log := e.log.WithFields(logrus.Fields{"url": resolved.FinalURL, "review_id": rec.ID})

	bodies, err := e.page.WaitFor(ctx, e.opts.BodySelector, e.opts.Timeout)
	if err != nil {
		return domain.SharedRecord{}, fmt.Errorf("no review body on %s: %w", resolved.FinalURL, err)
	}
	log.WithField("blocks", len(bodies)).Debug("Found body blocks")

	rec.Headlines = e.headlines(ctx, log)
	rec.BodyBlocks = texts(bodies, log)
	return rec, nil
}

// headlines is best effort: a missing or unreadable headline never fails the record.
func (e *Extractor) headlines(ctx context.Context, log logrus.FieldLogger) []string {
	if e.opts.HeadlineSelector == "" {
		return nil
	}
	found, err := e.page.Query(ctx, e.opts.HeadlineSelector)
	if err != nil {
		log.WithError(err).Warn("Error extracting headline")
		return nil
	}
	if len(found) == 0 {
		log.Info("No headline found on page")
		return nil
	}
	return texts(found, log)
}

func texts(els []browser.Element, log logrus.FieldLogger) []string {
	var out []string
	for i, el := range els {
		text, err := el.Text()
		if err != nil {
			log.WithError(err).WithField("block", i).Warn("Failed to read block text")
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// RecordID derives the record id from a resolved URL: the last path segment, or the
// one before it when the URL ends with the shared marker. Trailing slashes are ignored.
func RecordID(finalURL, sharedMarker string) string {
	trimmed := strings.TrimRight(finalURL, "/")
	segments := strings.Split(trimmed, "/")
	if sharedMarker != "" && strings.HasSuffix(trimmed, sharedMarker) && len(segments) >= 2 {
		return segments[len(segments)-2]
	}
	return segments[len(segments)-1]
}
