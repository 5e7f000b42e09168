// Package ledger keeps the durable record of every action taken per subject.
// It enforces idempotence and supplies the counts behind the daily limits.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/api/schemas"
)

// Day is the rolling window used for daily limits.
const Day = 24 * time.Hour

var codec = json.ConfigCompatibleWithStandardLibrary

// Entry is one recorded action.
type Entry struct {
	Timestamp float64        `json:"timestamp"`
	Details   map[string]any `json:"details"`

	// Legacy message fields, still written so older readers keep working.
	Message   string `json:"message,omitempty"`
	SentToday bool   `json:"sent_today,omitempty"`
}

// Time converts the epoch timestamp.
func (e Entry) Time() time.Time {
	sec := int64(e.Timestamp)
	nsec := int64((e.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// Document is the persisted shape: collection name, then subject id.
type Document map[string]map[string]Entry

func newDocument() Document {
	doc := make(Document, len(schemas.AllActionKinds))
	for _, kind := range schemas.AllActionKinds {
		doc[kind.Collection()] = map[string]Entry{}
	}
	return doc
}

// Mirror receives a copy of each recorded interaction.
type Mirror interface {
	RecordInteraction(ctx context.Context, in schemas.Interaction) error
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMirror copies every successful record to m. Mirror failures are logged only.
func WithMirror(m Mirror) Option {
	return func(l *Ledger) { l.mirror = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Ledger is the in-memory, write-through interaction store.
type Ledger struct {
	path   string
	logger *zap.Logger
	mirror Mirror
	now    func() time.Time

	mu  sync.RWMutex
	doc Document
}

// Open loads the ledger at path. It never fails: a missing, unreadable or
// corrupt file yields an empty ledger and a warning.
func Open(path string, logger *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		path:   path,
		logger: logger.Named("ledger"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.doc = l.load()
	return l
}

func (l *Ledger) load() Document {
	doc := newDocument()

	data, err := os.ReadFile(l.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Could not read ledger, starting empty.", zap.String("path", l.path), zap.Error(err))
		}
		return doc
	}

	var loaded Document
	if err := codec.Unmarshal(data, &loaded); err != nil {
		l.logger.Warn("Ledger file is corrupt, starting empty.", zap.String("path", l.path), zap.Error(err))
		return doc
	}

	for collection, entries := range loaded {
		if entries == nil {
			continue
		}
		doc[collection] = entries
	}
	l.logger.Debug("Ledger loaded.", zap.String("path", l.path), zap.Any("counts", doc.counts()))
	return doc
}

func (d Document) counts() map[string]int {
	out := make(map[string]int, len(d))
	for collection, entries := range d {
		out[collection] = len(entries)
	}
	return out
}

// HasInteracted reports whether an entry exists for the subject and kind.
func (l *Ledger) HasInteracted(subjectID string, kind schemas.ActionKind) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.doc[kind.Collection()][subjectID]
	return ok
}

// Entry returns the stored entry for the subject and kind.
func (l *Ledger) Entry(kind schemas.ActionKind, subjectID string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.doc[kind.Collection()][subjectID]
	return e, ok
}

// Record stores an entry stamped with the current time and rewrites the
// document. The in-memory state is updated even when the write fails; the
// returned error is then a PersistenceFailure the caller can report and ignore.
func (l *Ledger) Record(ctx context.Context, subjectID string, kind schemas.ActionKind, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	now := l.now()
	entry := Entry{
		Timestamp: float64(now.UnixNano()) / float64(time.Second),
		Details:   details,
	}
	if kind == schemas.ActionMessage {
		if msg, ok := details["message"].(string); ok {
			entry.Message = msg
		}
		entry.SentToday = true
	}

	l.mu.Lock()
	collection := kind.Collection()
	if l.doc[collection] == nil {
		l.doc[collection] = map[string]Entry{}
	}
	l.doc[collection][subjectID] = entry
	data, marshalErr := codec.MarshalIndent(l.doc, "", "  ")
	var writeErr error
	if marshalErr == nil {
		writeErr = writeFileAtomic(l.path, data)
	}
	l.mu.Unlock()

	if l.mirror != nil {
		in := schemas.Interaction{
			SubjectID: subjectID,
			Kind:      kind,
			Timestamp: entry.Timestamp,
			Details:   details,
		}
		if err := l.mirror.RecordInteraction(ctx, in); err != nil {
			l.logger.Warn("Failed to mirror interaction.", zap.String("subject_id", subjectID), zap.String("kind", string(kind)), zap.Error(err))
		}
	}

	if err := errors.Join(marshalErr, writeErr); err != nil {
		l.logger.Error("Failed to persist ledger; continuing with in-memory state.",
			zap.String("path", l.path),
			zap.String("subject_id", subjectID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return schemas.NewActionError("record "+string(kind), fmt.Errorf("%w: %w", schemas.ErrPersistence, err))
	}
	return nil
}

// CountRecent counts entries of kind recorded within window of now.
// Entries without a timestamp never count.
func (l *Ledger) CountRecent(kind schemas.ActionKind, window time.Duration) int {
	cutoff := float64(l.now().Add(-window).UnixNano()) / float64(time.Second)

	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, e := range l.doc[kind.Collection()] {
		if e.Timestamp > cutoff {
			n++
		}
	}
	return n
}

// Snapshot returns a deep-enough copy of the document for reporting.
func (l *Ledger) Snapshot() Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(Document, len(l.doc))
	for collection, entries := range l.doc {
		out[collection] = maps.Clone(entries)
	}
	return out
}

// Path returns the backing file.
func (l *Ledger) Path() string { return l.path }

// writeFileAtomic replaces path with data via a synced temp file and rename,
// so a crash leaves either the old or the new document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}
