// Package output persists link lists and extracted records as plain files.
package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"lemoncrawl/internal/domain"
)

// Options locate the record directories and fix the shared record text format.
type Options struct {
	ReviewsDir  string
	SessionsDir string
	HeadlineTag string
	Separator   string
}

// Store writes record files. Files are replaced atomically, so a file that
// exists is always a complete record.
type Store struct {
	opts Options
	log  logrus.FieldLogger
}

// NewStore creates a Store.
func NewStore(opts Options, logger logrus.FieldLogger) *Store {
	return &Store{
		opts: opts,
		log:  logger.WithField("component", "output"),
	}
}

// ReviewPath is the file a shared record with id is written to.
func (s *Store) ReviewPath(id string) string {
	return filepath.Join(s.opts.ReviewsDir, fmt.Sprintf("shared-review-%s.txt", id))
}

// SessionPath is the file a session record with id is written to.
func (s *Store) SessionPath(id string) string {
	return filepath.Join(s.opts.SessionsDir, fmt.Sprintf("session_%s.json", id))
}

// WriteSharedRecord writes the headlines then the body blocks, each followed by
// the separator line. An existing file is overwritten.
func (s *Store) WriteSharedRecord(rec domain.SharedRecord) (string, error) {
	var buf bytes.Buffer
	for _, h := range rec.Headlines {
		fmt.Fprintf(&buf, "%s\n%s\n%s\n", s.opts.HeadlineTag, h, s.opts.Separator)
	}
	for _, b := range rec.BodyBlocks {
		fmt.Fprintf(&buf, "%s\n%s\n", b, s.opts.Separator)
	}

	path := s.ReviewPath(rec.ID)
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		s.log.WithError(err).WithField("path", path).Error("Failed to write shared record")
		return "", err
	}
	return path, nil
}

// SessionExists reports whether a record for sessionID is already on disk.
func (s *Store) SessionExists(sessionID string) (bool, error) {
	_, err := os.Stat(s.SessionPath(sessionID))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat session record %s: %w", sessionID, err)
}

// WriteSessionRecord writes the meetings of rec as an indented JSON array.
func (s *Store) WriteSessionRecord(rec domain.SessionRecord) (string, error) {
	meetings := make([]domain.Meeting, 0, len(rec.Meetings))
	for _, m := range rec.Meetings {
		if m.Conversations == nil {
			m.Conversations = []domain.ConversationEntry{}
		}
		meetings = append(meetings, m)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meetings); err != nil {
		return "", fmt.Errorf("failed to encode session %s: %w", rec.SessionID, err)
	}

	path := s.SessionPath(rec.SessionID)
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		s.log.WithError(err).WithField("path", path).Error("Failed to write session record")
		return "", err
	}
	return path, nil
}

// ReadSessionRecord loads a session record written by WriteSessionRecord.
func (s *Store) ReadSessionRecord(sessionID string) (domain.SessionRecord, error) {
	raw, err := os.ReadFile(s.SessionPath(sessionID))
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}
	rec := domain.SessionRecord{SessionID: sessionID}
	if err := json.Unmarshal(raw, &rec.Meetings); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return rec, nil
}

// WriteLinks writes one URL per line in the given order.
func WriteLinks(path string, links []domain.EntityLink) error {
	var buf bytes.Buffer
	for _, l := range links {
		buf.WriteString(l.URL)
		buf.WriteByte('\n')
	}
	return writeAtomic(path, buf.Bytes())
}

// ReadLinks reads a link list, skipping blank lines.
func ReadLinks(path string) ([]domain.EntityLink, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open link list: %w", err)
	}
	defer f.Close()

	var links []domain.EntityLink
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		links = append(links, domain.EntityLink{URL: line})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read link list: %w", err)
	}
	return links, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod %s: %w", tmp.Name(), err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
