package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lemoncrawl/internal/browser"
	"lemoncrawl/internal/classify"
	"lemoncrawl/internal/config"
	"lemoncrawl/internal/domain"
	"lemoncrawl/internal/listing"
	"lemoncrawl/internal/notify"
	"lemoncrawl/internal/output"
	"lemoncrawl/internal/review"
	"lemoncrawl/internal/session"
	"lemoncrawl/internal/storage"
)

// newRunID tags every ledger entry written by one command invocation.
func newRunID() string {
	return uuid.NewString()
}

func newStore(c config.Config, logger logrus.FieldLogger) *output.Store {
	return output.NewStore(output.Options{
		ReviewsDir:  c.ReviewsDir,
		SessionsDir: c.SessionsDir,
		HeadlineTag: c.Markers.HeadlineTag,
		Separator:   c.Markers.Separator,
	}, logger)
}

// collectLinks paginates the listing of kind and writes its link list file.
func collectLinks(ctx context.Context, c config.Config, page browser.Page, kind domain.ItemKind, logger logrus.FieldLogger) ([]domain.EntityLink, error) {
	opts := listing.Options{
		NextSelector:       c.Selectors.NextPage,
		NextButtonSelector: c.Selectors.NextPageButton,
		DisabledAttr:       c.Selectors.DisabledAttr,
		Timeout:            c.WaitTimeout,
	}
	var (
		rule       listing.Rule
		listingURL string
		file       string
	)
	switch kind {
	case domain.ItemReview:
		opts.RowSelector = c.Selectors.ListingRow
		rule = listing.CellAnchor{
			Cell:   c.Selectors.RowCell,
			Index:  c.Selectors.RowCellIndex,
			Anchor: c.Selectors.CellAnchor,
			Base:   c.BaseURL,
		}
		listingURL, file = c.Resolve(c.ReviewsURL), c.ReviewLinksFile
	case domain.ItemSession:
		opts.RowSelector = c.Selectors.SessionRow
		rule = listing.RowKey{Attr: c.Selectors.RowKeyAttr, Prefix: c.Resolve(c.OneOnOneBaseURL)}
		listingURL, file = c.Resolve(c.OneOnOneURL), c.SessionLinksFile
	default:
		return nil, fmt.Errorf("unknown listing kind %q", kind)
	}

	links, err := listing.NewPaginator(page, opts, logger).Collect(ctx, listingURL, rule)
	if err != nil {
		return nil, err
	}
	if err := output.WriteLinks(file, links); err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"kind": kind, "links": len(links), "file": file}).Info("Saved link list")
	return links, nil
}

func newReviewProcessor(c config.Config, page browser.Page, writer review.Writer, recorder storage.Recorder, runID string, logger logrus.FieldLogger) *review.Processor {
	return review.NewProcessor(review.ProcessorConfig{
		Page:       page,
		Classifier: classify.New(classify.Markers{Draft: c.Markers.Draft, Shared: c.Markers.Shared}),
		Extractor: review.NewExtractor(page, review.Options{
			BodySelector:     c.Selectors.ReviewBody,
			HeadlineSelector: c.Selectors.ReviewHeadline,
			SharedMarker:     c.Markers.Shared,
			Timeout:          c.WaitTimeout,
		}, logger),
		Writer:         writer,
		Recorder:       recorder,
		RedirectSettle: c.RedirectSettle,
		RunID:          runID,
	}, logger)
}

func newSessionExtractor(c config.Config, page browser.Page, store *output.Store, recorder storage.Recorder, runID string, logger logrus.FieldLogger) *session.Extractor {
	return session.NewExtractor(session.Config{
		Page: page,
		Options: session.Options{
			MeetingSelector:    c.Selectors.MeetingDate,
			BlockSelector:      c.Selectors.ConversationBlock,
			ChildSelector:      c.Selectors.ConversationChild,
			CommentEditor:      c.Selectors.CommentEditor,
			CommentPlaceholder: c.Markers.CommentPlaceholder,
			AvatarSelector:     c.Selectors.Avatar,
			Timeout:            c.WaitTimeout,
			RedirectSettle:     c.RedirectSettle,
			MeetingSettle:      c.MeetingSettle,
		},
		Guard:    session.FileGuard{Records: store},
		Writer:   store,
		Recorder: recorder,
		RunID:    runID,
	}, logger)
}

func newNotifier(c config.Config, logger logrus.FieldLogger) notify.Notifier {
	if !c.TelegramEnabled() {
		return notify.Nop{}
	}
	n, err := notify.NewTelegram(c.TelegramBotToken, c.TelegramChatID, logger)
	if err != nil {
		logger.WithError(err).Warn("Telegram notifications disabled")
		return notify.Nop{}
	}
	return n
}

// report logs the summary and hands it to the notifier. Notification errors are not fatal.
func report(ctx context.Context, n notify.Notifier, summary domain.RunSummary, logger logrus.FieldLogger) {
	logger.WithFields(logrus.Fields{
		"command":  summary.Command,
		"run_id":   summary.RunID,
		"total":    summary.Total,
		"saved":    summary.Saved,
		"partial":  summary.Partial,
		"skipped":  summary.Skipped,
		"failed":   summary.Failed,
		"duration": summary.Duration().String(),
	}).Info("Run finished")

	// Sent even after an interrupt cancelled ctx.
	if err := n.Notify(context.WithoutCancel(ctx), summary); err != nil {
		logger.WithError(err).Warn("Failed to deliver run summary")
	}
}
