package review

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"lemoncrawl/internal/browser"
	"lemoncrawl/internal/classify"
	"lemoncrawl/internal/domain"
	"lemoncrawl/internal/storage"
)

// Writer persists shared records.
type Writer interface {
	WriteSharedRecord(rec domain.SharedRecord) (string, error)
}

// Processor walks a review link list: navigate, settle, classify, extract, write.
type Processor struct {
	page       browser.Page
	classifier classify.Classifier
	extractor  *Extractor
	writer     Writer
	recorder   storage.Recorder
	settle     time.Duration
	runID      string
	log        logrus.FieldLogger
}

// ProcessorConfig bundles the Processor's collaborators.
type ProcessorConfig struct {
	Page           browser.Page
	Classifier     classify.Classifier
	Extractor      *Extractor
	Writer         Writer
	Recorder       storage.Recorder
	RedirectSettle time.Duration
	RunID          string
}

// NewProcessor creates a Processor.
func NewProcessor(cfg ProcessorConfig, logger logrus.FieldLogger) *Processor {
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = storage.NopRecorder{}
	}
	return &Processor{
		page:       cfg.Page,
		classifier: cfg.Classifier,
		extractor:  cfg.Extractor,
		writer:     cfg.Writer,
		recorder:   recorder,
		settle:     cfg.RedirectSettle,
		runID:      cfg.RunID,
		log:        logger.WithField("component", "review_processor"),
	}
}

// Outcome is what happened to one review link.
type Outcome struct {
	Status domain.ItemStatus
	// Kind is the classification of the resolved page; empty when the page never resolved.
	Kind domain.PageKind
	// RecordID names the shared record file; empty unless the page classified as shared.
	RecordID string
	Err      error
}

// Process handles every link in order. Failures are contained per link.
func (p *Processor) Process(ctx context.Context, links []domain.EntityLink) domain.RunSummary {
	summary := domain.RunSummary{Command: "reviews", RunID: p.runID, StartedAt: time.Now()}
	foundShared := false

	for i, link := range links {
		if ctx.Err() != nil {
			p.log.WithError(ctx.Err()).Warn("Stopping review processing")
			break
		}
		out := p.Visit(ctx, link)
		if out.Kind == domain.KindShared {
			foundShared = true
		}
		summary.Count(out.Status)
		p.record(ctx, link, out)
		p.log.WithFields(logrus.Fields{"progress": fmt.Sprintf("%d/%d", i+1, len(links)), "status": out.Status}).Debug("Review handled")
	}

	if !foundShared {
		p.log.Info("No shared-review pages were found after redirects.")
	}
	summary.FinishedAt = time.Now()
	return summary
}

// ProcessOne resolves one link and, for a shared review, writes its record.
// The returned error explains a non-saved status.
func (p *Processor) ProcessOne(ctx context.Context, link domain.EntityLink) (domain.ItemStatus, error) {
	out := p.Visit(ctx, link)
	return out.Status, out.Err
}

// Visit is ProcessOne with the resolved kind and record id reported as well.
func (p *Processor) Visit(ctx context.Context, link domain.EntityLink) Outcome {
	log := p.log.WithField("url", link.URL)

	if err := p.page.Navigate(ctx, link.URL); err != nil {
		log.WithError(err).Error("Failed to open review")
		return Outcome{Status: domain.StatusFailed, Err: err}
	}
	if err := browser.Settle(ctx, p.settle); err != nil {
		return Outcome{Status: domain.StatusFailed, Err: err}
	}
	finalURL, err := p.page.CurrentURL(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to read resolved url")
		return Outcome{Status: domain.StatusFailed, Err: err}
	}

	resolved := p.classifier.Resolve(finalURL)
	log = log.WithFields(logrus.Fields{"final_url": finalURL, "kind": resolved.Kind})
	log.Info("Visited")

	switch resolved.Kind {
	case domain.KindDraft:
		log.Info("Skipped (not yet shared)")
		return Outcome{Status: domain.StatusDraft, Kind: resolved.Kind}
	case domain.KindShared:
	default:
		err := fmt.Errorf("%w: %s", classify.ErrUnknownKind, finalURL)
		log.WithError(err).Warn("Not a shared-review page, skipping")
		return Outcome{Status: domain.StatusUnknown, Kind: resolved.Kind, Err: err}
	}

	out := Outcome{Kind: domain.KindShared, RecordID: RecordID(finalURL, p.extractor.opts.SharedMarker)}
	rec, err := p.extractor.Extract(ctx, resolved)
	if err != nil {
		log.WithError(err).Error("Error processing shared review")
		out.Status, out.Err = domain.StatusFailed, err
		return out
	}
	path, err := p.writer.WriteSharedRecord(rec)
	if err != nil {
		out.Status, out.Err = domain.StatusFailed, err
		return out
	}
	log.WithFields(logrus.Fields{
		"review_id": rec.ID,
		"headlines": len(rec.Headlines),
		"blocks":    len(rec.BodyBlocks),
		"path":      path,
	}).Info("Saved shared review text")
	out.Status = domain.StatusSaved
	return out
}

// record keys the ledger entry by the record id when the page resolved to a
// shared review, so it matches the output file name.
func (p *Processor) record(ctx context.Context, link domain.EntityLink, out Outcome) {
	id := out.RecordID
	if id == "" {
		id = domain.LastPathSegment(link.URL)
	}
	attempt := domain.ItemAttempt{
		Kind:   domain.ItemReview,
		ID:     id,
		URL:    link.URL,
		Status: out.Status,
		RunID:  p.runID,
	}
	if out.Err != nil {
		attempt.LastError = out.Err.Error()
	}
	if _, err := p.recorder.RecordAttempt(ctx, attempt); err != nil {
		p.log.WithError(err).WithField("url", link.URL).Warn("Failed to record review attempt")
	}
}
