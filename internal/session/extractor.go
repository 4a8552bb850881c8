// Package session extracts one-on-one session transcripts by clicking through
// each meeting of a session page.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"lemoncrawl/internal/browser"
	"lemoncrawl/internal/domain"
	"lemoncrawl/internal/storage"
)

// State is a step of the per-session state machine, reported in logs.
type State string

const (
	StateStart      State = "start"
	StateSkipped    State = "skipped"
	StateNavigated  State = "navigated"
	StateClassified State = "classified"
	StateSelecting  State = "selecting"
	StateClicked    State = "clicked"
	StateExtracted  State = "extracted"
	StatePersisted  State = "persisted"
	StateFailed     State = "failed"
)

// Options are the session page selectors and timings.
type Options struct {
	MeetingSelector    string
	BlockSelector      string
	ChildSelector      string
	CommentEditor      string
	CommentPlaceholder string
	AvatarSelector     string
	Timeout            time.Duration
	RedirectSettle     time.Duration
	MeetingSettle      time.Duration
}

// Writer persists session records.
type Writer interface {
	WriteSessionRecord(rec domain.SessionRecord) (string, error)
}

// Config bundles the Extractor's collaborators.
type Config struct {
	Page     browser.Page
	Options  Options
	Guard    Guard
	Writer   Writer
	Recorder storage.Recorder
	RunID    string
}

// Extractor runs the session state machine over a list of session links.
type Extractor struct {
	page     browser.Page
	opts     Options
	guard    Guard
	writer   Writer
	recorder storage.Recorder
	runID    string
	editor   string
	log      logrus.FieldLogger
}

// NewExtractor creates an Extractor.
func NewExtractor(cfg Config, logger logrus.FieldLogger) *Extractor {
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = storage.NopRecorder{}
	}
	return &Extractor{
		page:     cfg.Page,
		opts:     cfg.Options,
		guard:    cfg.Guard,
		writer:   cfg.Writer,
		recorder: recorder,
		runID:    cfg.RunID,
		editor:   EditorSelector(cfg.Options.CommentEditor, cfg.Options.CommentPlaceholder),
		log:      logger.WithField("component", "session_extractor"),
	}
}

// EditorSelector matches the unsubmitted comment input by its placeholder.
func EditorSelector(tag, placeholder string) string {
	if placeholder == "" {
		return tag
	}
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(placeholder)
	return fmt.Sprintf(`%s[placeholder="%s"]`, tag, escaped)
}

// Process handles every session link in order. Failures are contained per session.
func (e *Extractor) Process(ctx context.Context, links []domain.EntityLink) domain.RunSummary {
	summary := domain.RunSummary{Command: "sessions", RunID: e.runID, StartedAt: time.Now()}
	for _, link := range links {
		if ctx.Err() != nil {
			e.log.WithError(ctx.Err()).Warn("Stopping session processing")
			break
		}
		status, err := e.ProcessOne(ctx, link)
		summary.Count(status)
		e.record(ctx, link, status, err)
	}
	summary.FinishedAt = time.Now()
	return summary
}

// ProcessOne runs one session through start, navigate, classify, the per-meeting
// loop and persist. A session is persisted even when some meetings failed.
func (e *Extractor) ProcessOne(ctx context.Context, link domain.EntityLink) (domain.ItemStatus, error) {
	sessionID := domain.LastPathSegment(link.URL)
	log := e.log.WithFields(logrus.Fields{"url": link.URL, "session_id": sessionID})
	step := func(s State) { log.WithField("state", s).Debug("Session state") }

	step(StateStart)
	done, err := e.guard.AlreadyProcessed(sessionID)
	if err != nil {
		step(StateFailed)
		log.WithError(err).Error("Failed to check for an existing session record")
		return domain.StatusFailed, err
	}
	if done {
		step(StateSkipped)
		log.Info("Skipping session (already crawled)")
		return domain.StatusSkipped, nil
	}

	if err := e.page.Navigate(ctx, link.URL); err != nil {
		step(StateFailed)
		log.WithError(err).Error("Failed to open session")
		return domain.StatusFailed, err
	}
	if err := browser.Settle(ctx, e.opts.RedirectSettle); err != nil {
		return domain.StatusFailed, err
	}
	if finalURL, err := e.page.CurrentURL(ctx); err == nil {
		log = log.WithField("final_url", finalURL)
	}
	step(StateNavigated)
	log.Info("Processing 1:1 session")

	dates, err := e.page.WaitFor(ctx, e.opts.MeetingSelector, e.opts.Timeout)
	if err == nil && len(dates) == 0 {
		err = fmt.Errorf("%w: %s matched nothing", browser.ErrTimeout, e.opts.MeetingSelector)
	}
	if err != nil {
		step(StateFailed)
		log.WithError(err).Error("Error finding meeting date elements")
		return domain.StatusFailed, fmt.Errorf("no meetings on session %s: %w", sessionID, err)
	}
	step(StateClassified)
	log.WithField("meetings", len(dates)).Info("Found meeting date elements")

	rec := domain.SessionRecord{SessionID: sessionID, Meetings: []domain.Meeting{}}
	var failures []error
	for i, date := range dates {
		if ctx.Err() != nil {
			return domain.StatusFailed, ctx.Err()
		}
		meeting, err := e.extractMeeting(ctx, log.WithField("meeting_index", i), date)
		if err != nil {
			failures = append(failures, fmt.Errorf("meeting %d: %w", i, err))
			continue
		}
		rec.Meetings = append(rec.Meetings, meeting)
	}

	path, err := e.writer.WriteSessionRecord(rec)
	if err != nil {
		step(StateFailed)
		return domain.StatusFailed, err
	}
	step(StatePersisted)
	log.WithFields(logrus.Fields{"meetings": len(rec.Meetings), "failed_meetings": len(failures), "path": path}).Info("Saved session")

	if len(failures) > 0 {
		return domain.StatusPartial, errors.Join(failures...)
	}
	return domain.StatusSaved, nil
}

// extractMeeting selects one meeting and reads its conversation panel.
func (e *Extractor) extractMeeting(ctx context.Context, log logrus.FieldLogger, date browser.Element) (domain.Meeting, error) {
	log.WithField("state", StateSelecting).Debug("Meeting state")

	// The label is read before the click, which may re-layout the list.
	label, err := date.Text()
	if err != nil {
		log.WithError(err).Warn("Failed to read meeting date")
		return domain.Meeting{}, err
	}
	log = log.WithField("meeting", label)

	if err := date.ScrollIntoView(); err != nil {
		log.WithError(err).Warn("Failed to scroll meeting into view")
		return domain.Meeting{}, err
	}
	if err := date.Click(); err != nil {
		log.WithError(err).Warn("Failed to select meeting")
		return domain.Meeting{}, err
	}
	log.WithField("state", StateClicked).Debug("Meeting state")

	if err := browser.Settle(ctx, e.opts.MeetingSettle); err != nil {
		return domain.Meeting{}, err
	}
	blocks, err := e.page.WaitFor(ctx, e.opts.BlockSelector, e.opts.Timeout)
	if err == nil && len(blocks) == 0 {
		err = fmt.Errorf("%w: %s matched nothing", browser.ErrTimeout, e.opts.BlockSelector)
	}
	if err != nil {
		log.WithError(err).Warn("Error finding conversation blocks for meeting")
		return domain.Meeting{}, err
	}

	meeting := domain.Meeting{Date: label, Conversations: e.conversations(log, blocks)}
	log.WithFields(logrus.Fields{
		"state":         StateExtracted,
		"conversations": len(meeting.Conversations),
	}).Info("Extracted conversations for meeting")
	return meeting, nil
}

// conversations reads the direct children of each block. Children holding the
// comment editor are excluded whatever else they contain.
func (e *Extractor) conversations(log logrus.FieldLogger, blocks []browser.Element) []domain.ConversationEntry {
	entries := []domain.ConversationEntry{}
	for blockIdx, block := range blocks {
		children, err := block.Children(e.opts.ChildSelector)
		if err != nil {
			log.WithError(err).WithField("block", blockIdx).Warn("Failed to list conversation block children")
			continue
		}
		for childIdx, child := range children {
			if e.isEditor(child) {
				continue
			}
			text, err := child.Text()
			if err != nil {
				log.WithError(err).WithFields(logrus.Fields{"block": blockIdx, "child": childIdx}).Debug("Failed to read conversation text")
				continue
			}
			if text = strings.TrimSpace(text); text == "" {
				continue
			}
			entries = append(entries, domain.ConversationEntry{
				BlockIndex: blockIdx,
				ChildIndex: childIdx,
				Text:       text,
				AvatarURL:  e.avatar(child),
			})
		}
	}
	return entries
}

func (e *Extractor) isEditor(child browser.Element) bool {
	editors, err := child.Query(e.editor)
	return err == nil && len(editors) > 0
}

// avatar is best effort and yields "" when there is no avatar image.
func (e *Extractor) avatar(child browser.Element) string {
	img, err := browser.First(child, e.opts.AvatarSelector)
	if err != nil {
		return ""
	}
	src, ok, err := img.Attribute("src")
	if err != nil || !ok {
		return ""
	}
	return src
}

func (e *Extractor) record(ctx context.Context, link domain.EntityLink, status domain.ItemStatus, cause error) {
	attempt := domain.ItemAttempt{
		Kind:   domain.ItemSession,
		ID:     domain.LastPathSegment(link.URL),
		URL:    link.URL,
		Status: status,
		RunID:  e.runID,
	}
	if cause != nil {
		attempt.LastError = cause.Error()
	}
	if _, err := e.recorder.RecordAttempt(ctx, attempt); err != nil {
		e.log.WithError(err).WithField("url", link.URL).Warn("Failed to record session attempt")
	}
}
