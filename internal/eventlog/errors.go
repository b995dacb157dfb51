package eventlog

import (
	"errors"
	"fmt"
)

// ErrWriteConflict indicates an append lost to a concurrent writer or
// collided on an event id. The write did not happen; the caller may
// retry.
var ErrWriteConflict = errors.New("write conflict")

// ConflictError carries the reason an append conflicted.
type ConflictError struct {
	Scope  string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("write conflict on %s scope: %s", e.Scope, e.Reason)
}

// Is makes ConflictError match ErrWriteConflict under errors.Is.
func (e *ConflictError) Is(target error) bool {
	return target == ErrWriteConflict
}

// ErrRecordTooLong marks a log line past the single-record size bound.
// The line is one corrupt record, skipped like any other malformed
// line; the rest of the file is still read.
var ErrRecordTooLong = errors.New("record exceeds size limit")

// SkippedRecord reports one malformed log line that replay skipped.
// The rest of the history is unaffected.
type SkippedRecord struct {
	Scope string
	Line  int
	Err   error
}

func (r SkippedRecord) String() string {
	return fmt.Sprintf("%s scope line %d: %v", r.Scope, r.Line, r.Err)
}
