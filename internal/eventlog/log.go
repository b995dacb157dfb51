package eventlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cairnhq/cairn/internal/knowledge"
)

// maxLineBytes bounds a single event record. Knowledge artifacts are
// short prose; a longer line is treated as one corrupt record and
// skipped, like any other malformed line.
const maxLineBytes = 1 << 20

// Log is the append-only event store rooted at one directory.
// One JSONL file per scope: <dir>/shared.jsonl and <dir>/local.jsonl.
type Log struct {
	dir       string
	validator *knowledge.Validator
	ids       knowledge.IDGenerator
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithIDGenerator overrides the event id source. Tests use
// knowledge.NewFixedIDGenerator for deterministic histories.
func WithIDGenerator(gen knowledge.IDGenerator) Option {
	return func(l *Log) { l.ids = gen }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithLogger overrides the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// Open prepares the log directory and returns a Log. Idempotent: safe
// to call on an existing directory.
func Open(dir string, validator *knowledge.Validator, opts ...Option) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	l := &Log{
		dir:       dir,
		validator: validator,
		ids:       knowledge.UUIDv7Generator{},
		now:       func() time.Time { return time.Now().UTC() },
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Dir returns the log root directory.
func (l *Log) Dir() string { return l.dir }

func (l *Log) scopePath(scope knowledge.Scope) string {
	return filepath.Join(l.dir, string(scope)+".jsonl")
}

func (l *Log) lockPath(scope knowledge.Scope) string {
	return filepath.Join(l.dir, string(scope)+".lock")
}

// Append validates the payload, assigns id, seq, and timestamp, and
// writes the event atomically to its scope file. Returns the written
// event.
//
// Fails with ErrWriteConflict when another writer holds the scope lock
// or the generated id already exists; the caller retries.
func (l *Log) Append(ctx context.Context, scope knowledge.Scope, payload knowledge.Payload) (knowledge.Event, error) {
	ev := knowledge.Event{
		Type:    payload.EventType(),
		Scope:   scope,
		Payload: payload,
	}
	return l.appendEvent(ctx, ev, true)
}

// AppendExisting writes an event that already carries an id, preserving
// it. Used by sync to merge pulled shared events. Seq is reassigned to
// the local append position; id collision means the event is already
// present and fails with ErrWriteConflict.
func (l *Log) AppendExisting(ctx context.Context, ev knowledge.Event) (knowledge.Event, error) {
	return l.appendEvent(ctx, ev, false)
}

func (l *Log) appendEvent(ctx context.Context, ev knowledge.Event, assignID bool) (knowledge.Event, error) {
	if err := ctx.Err(); err != nil {
		return knowledge.Event{}, err
	}
	if !knowledge.ValidScopes[ev.Scope] {
		return knowledge.Event{}, fmt.Errorf("invalid scope %q", ev.Scope)
	}

	unlock, err := l.lock(ev.Scope)
	if err != nil {
		return knowledge.Event{}, err
	}
	defer unlock()

	lastSeq, ids, err := l.scanScope(ev.Scope)
	if err != nil {
		return knowledge.Event{}, err
	}

	if assignID {
		ev.ID = l.ids.NewID()
		ev.Timestamp = l.now()
	}
	ev.Seq = lastSeq + 1

	if ev.ID == "" {
		return knowledge.Event{}, fmt.Errorf("event id must not be empty")
	}
	if ids[ev.ID] {
		return knowledge.Event{}, &ConflictError{
			Scope:  string(ev.Scope),
			Reason: fmt.Sprintf("event id %s already present", ev.ID),
		}
	}

	if err := l.validator.ValidateEvent(ev); err != nil {
		return knowledge.Event{}, fmt.Errorf("append: %w", err)
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return knowledge.Event{}, fmt.Errorf("append: marshal event: %w", err)
	}

	f, err := os.OpenFile(l.scopePath(ev.Scope), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return knowledge.Event{}, fmt.Errorf("append: open log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return knowledge.Event{}, fmt.Errorf("append: write event: %w", err)
	}
	if err := f.Sync(); err != nil {
		return knowledge.Event{}, fmt.Errorf("append: sync log: %w", err)
	}

	l.logger.Debug("event appended",
		"id", ev.ID, "type", string(ev.Type), "scope", string(ev.Scope), "seq", ev.Seq)
	return ev, nil
}

// lock takes the per-scope exclusive lock file. A held lock means a
// concurrent writer: the append conflicts instead of blocking. A lock
// whose recorded owner is no longer running is reclaimed, so a crashed
// writer never wedges the scope until someone deletes the file by hand.
func (l *Log) lock(scope knowledge.Scope) (func(), error) {
	path := l.lockPath(scope)
	for reclaimed := false; ; {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() {
				if err := os.Remove(path); err != nil {
					l.logger.Warn("release lock", "scope", string(scope), "error", err)
				}
			}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquire %s lock: %w", scope, err)
		}
		if !reclaimed && l.reclaimStaleLock(path) {
			reclaimed = true
			continue
		}
		return nil, &ConflictError{
			Scope:  string(scope),
			Reason: fmt.Sprintf("another writer holds %s", path),
		}
	}
}

// reclaimStaleLock removes a lock file whose recorded owner pid is
// dead. An unreadable owner is treated as live: the lock stays.
func (l *Log) reclaimStaleLock(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 || processAlive(pid) {
		return false
	}
	if err := os.Remove(path); err != nil {
		return false
	}
	l.logger.Warn("reclaimed stale lock", "path", path, "pid", pid)
	return true
}

// processAlive probes a pid with the null signal. Only a definite
// "no such process" counts as dead; a permission error means the pid
// exists under another user.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return !errors.Is(err, os.ErrProcessDone) && !errors.Is(err, syscall.ESRCH)
}

// forEachLine walks newline-delimited records, calling fn once per
// line with the line number. A line longer than maxLineBytes is
// discarded up to the next newline and reported with ErrRecordTooLong
// in place of its content; only an I/O failure or a non-nil return
// from fn stops the walk.
func forEachLine(r io.Reader, fn func(lineNo int, line []byte, lineErr error) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var (
		lineNo  int
		buf     []byte
		tooLong bool
	)
	emit := func() error {
		lineNo++
		if tooLong {
			tooLong = false
			buf = buf[:0]
			return fn(lineNo, nil, ErrRecordTooLong)
		}
		err := fn(lineNo, bytes.TrimSuffix(buf, []byte{'\n'}), nil)
		buf = buf[:0]
		return err
	}
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, chunk...)
			// +1 for the newline itself.
			if len(buf) > maxLineBytes+1 {
				buf = buf[:0]
				tooLong = true
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(buf) > 0 || tooLong {
				return emit()
			}
			return nil
		case err != nil:
			return err
		}
		if err := emit(); err != nil {
			return err
		}
	}
}

// scanScope returns the last seq and the set of event ids in a scope
// file. Malformed lines, oversized ones included, are ignored here;
// Read reports them.
func (l *Log) scanScope(scope knowledge.Scope) (int64, map[string]bool, error) {
	ids := make(map[string]bool)

	f, err := os.Open(l.scopePath(scope))
	if os.IsNotExist(err) {
		return 0, ids, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("open %s log: %w", scope, err)
	}
	defer f.Close()

	var lastSeq int64
	walkErr := forEachLine(f, func(_ int, line []byte, lineErr error) error {
		if lineErr != nil || len(line) == 0 {
			return nil
		}
		var head struct {
			ID  string `json:"id"`
			Seq int64  `json:"seq"`
		}
		if err := json.Unmarshal(line, &head); err != nil {
			return nil
		}
		if head.ID != "" {
			ids[head.ID] = true
		}
		if head.Seq > lastSeq {
			lastSeq = head.Seq
		}
		return nil
	})
	if walkErr != nil {
		return 0, nil, fmt.Errorf("scan %s log: %w", scope, walkErr)
	}
	return lastSeq, ids, nil
}

// Read returns all events of one scope in append order, plus any
// malformed records that were skipped. A storage-level read failure is
// fatal and returned as an error.
func (l *Log) Read(ctx context.Context, scope knowledge.Scope) ([]knowledge.Event, []SkippedRecord, error) {
	f, err := os.Open(l.scopePath(scope))
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s log: %w", scope, err)
	}
	defer f.Close()

	var (
		events  []knowledge.Event
		skipped []SkippedRecord
	)
	walkErr := forEachLine(f, func(lineNo int, line []byte, lineErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lineErr != nil {
			skipped = append(skipped, SkippedRecord{Scope: string(scope), Line: lineNo, Err: lineErr})
			return nil
		}
		if len(line) == 0 {
			return nil
		}

		var ev knowledge.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			skipped = append(skipped, SkippedRecord{Scope: string(scope), Line: lineNo, Err: err})
			return nil
		}
		if ev.Scope != scope {
			skipped = append(skipped, SkippedRecord{
				Scope: string(scope),
				Line:  lineNo,
				Err:   fmt.Errorf("record scope %q does not match %s log", ev.Scope, scope),
			})
			return nil
		}
		if err := l.validator.ValidateEvent(ev); err != nil {
			skipped = append(skipped, SkippedRecord{Scope: string(scope), Line: lineNo, Err: err})
			return nil
		}
		events = append(events, ev)
		return nil
	})
	if walkErr != nil {
		// Storage failure or cancellation, not a record problem: the
		// source of truth is unreadable and there is no recovery
		// without it.
		return nil, nil, fmt.Errorf("read %s log: %w", scope, walkErr)
	}

	for _, rec := range skipped {
		l.logger.Warn("malformed event skipped", "scope", rec.Scope, "line", rec.Line, "error", rec.Err)
	}
	return events, skipped, nil
}

// ReadAll returns the full replay sequence: shared events first, then
// local, each in append order. Local events may reference shared
// artifacts but never the other way around.
func (l *Log) ReadAll(ctx context.Context) ([]knowledge.Event, []SkippedRecord, error) {
	shared, skippedShared, err := l.Read(ctx, knowledge.ScopeShared)
	if err != nil {
		return nil, nil, err
	}
	local, skippedLocal, err := l.Read(ctx, knowledge.ScopeLocal)
	if err != nil {
		return nil, nil, err
	}

	events := make([]knowledge.Event, 0, len(shared)+len(local))
	events = append(events, shared...)
	events = append(events, local...)
	return events, append(skippedShared, skippedLocal...), nil
}

// Watermark identifies the log head across both scopes. The derived
// index cache is valid only while its stored watermark matches.
func (l *Log) Watermark(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sharedSeq, _, err := l.scanScope(knowledge.ScopeShared)
	if err != nil {
		return "", err
	}
	localSeq, _, err := l.scanScope(knowledge.ScopeLocal)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("shared:%d;local:%d", sharedSeq, localSeq), nil
}
