package schedule

import (
	"errors"
	"fmt"
)

// MalformedEventError rejects a single record. The rest of the batch is
// still scheduled.
type MalformedEventError struct {
	ID     string
	Index  int
	Reason string
	Err    error
}

func (e *MalformedEventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schedule: malformed event %q (#%d): %s: %v", e.ID, e.Index, e.Reason, e.Err)
	}
	return fmt.Sprintf("schedule: malformed event %q (#%d): %s", e.ID, e.Index, e.Reason)
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// Detail is the reason without the event identity, as reported in
// rejections.
func (e *MalformedEventError) Detail() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

var (
	ErrStartAfterEnd = errors.New("start is after end")
	ErrWindowTooLong = errors.New("day window spans more than one local day")
)
