package session

// Guard decides whether a session was already persisted by an earlier run.
type Guard interface {
	AlreadyProcessed(sessionID string) (bool, error)
}

// RecordChecker reports whether a session record exists.
type RecordChecker interface {
	SessionExists(sessionID string) (bool, error)
}

// FileGuard is the resume guard: a session counts as processed exactly when its
// output record exists. Failed sessions have no record and are retried on the next run.
type FileGuard struct {
	Records RecordChecker
}

func (g FileGuard) AlreadyProcessed(sessionID string) (bool, error) {
	return g.Records.SessionExists(sessionID)
}
