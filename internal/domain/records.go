package domain

import (
	"strings"
	"time"
)

// EntityLink is one row's target URL in a paginated listing.
// Duplicates are possible when the listing re-renders mid-traversal.
type EntityLink struct {
	URL string `json:"url"`
}

// PageKind is the kind of page an entity URL settles on after the client-side redirect.
type PageKind string

const (
	KindDraft   PageKind = "draft"
	KindShared  PageKind = "shared"
	KindUnknown PageKind = "unknown"
)

// ResolvedPage is the outcome of navigating to an EntityLink.
type ResolvedPage struct {
	FinalURL string   `json:"final_url"`
	Kind     PageKind `json:"kind"`
}

// SharedRecord is one extracted review.
type SharedRecord struct {
	// ID is derived from the resolved URL and determines the output file name.
	ID string `json:"id"`

	// Headlines are the non-empty headline texts, in DOM order.
	Headlines []string `json:"headlines,omitempty"`

	// BodyBlocks are the non-empty body texts, in DOM order.
	BodyBlocks []string `json:"body_blocks"`
}

// SessionRecord is the full transcript of one one-on-one session.
type SessionRecord struct {
	SessionID string    `json:"session_id"`
	Meetings  []Meeting `json:"meetings"`
}

// Meeting is one dated meeting inside a session. Date is the raw label text.
type Meeting struct {
	Date          string              `json:"meeting_date"`
	Conversations []ConversationEntry `json:"conversations"`
}

// ConversationEntry is one speaker turn or content block inside a meeting.
type ConversationEntry struct {
	BlockIndex int    `json:"block_index"`
	ChildIndex int    `json:"child_index"`
	Text       string `json:"text"`
	AvatarURL  string `json:"avatar_url"`
}

// ItemKind names the two kinds of work item tracked in the run ledger.
type ItemKind string

const (
	ItemReview  ItemKind = "review"
	ItemSession ItemKind = "session"
)

// ItemStatus is the outcome of the last attempt at an item.
type ItemStatus string

const (
	StatusSaved   ItemStatus = "saved"
	StatusPartial ItemStatus = "partial"
	StatusSkipped ItemStatus = "skipped"
	StatusDraft   ItemStatus = "draft"
	StatusUnknown ItemStatus = "unknown"
	StatusFailed  ItemStatus = "failed"
)

// ItemAttempt is a run ledger entry describing the latest attempt at one item.
type ItemAttempt struct {
	Kind      ItemKind   `json:"kind"`
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	Status    ItemStatus `json:"status"`
	Attempts  int        `json:"attempts"`
	LastError string     `json:"last_error,omitempty"`
	RunID     string     `json:"run_id"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// LastPathSegment returns the last segment of url after trailing slashes are removed.
func LastPathSegment(url string) string {
	trimmed := strings.TrimRight(url, "/")
	return trimmed[strings.LastIndex(trimmed, "/")+1:]
}
