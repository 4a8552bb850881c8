package domain

import "time"

// RunSummary counts item outcomes of one pipeline command.
type RunSummary struct {
	Command    string    `json:"command"`
	RunID      string    `json:"run_id"`
	Total      int       `json:"total"`
	Saved      int       `json:"saved"`
	Partial    int       `json:"partial"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Count adds one item with the given outcome.
func (s *RunSummary) Count(status ItemStatus) {
	s.Total++
	switch status {
	case StatusSaved:
		s.Saved++
	case StatusPartial:
		s.Partial++
	case StatusFailed:
		s.Failed++
	default:
		s.Skipped++
	}
}

// Duration is the wall time between start and finish.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
