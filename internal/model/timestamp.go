package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"agendacal/internal/caltime"
)

type timestampKind uint8

const (
	timestampMissing timestampKind = iota
	timestampMillis
	timestampText
	timestampInvalid
)

// Timestamp is a tolerant timestamp field. It accepts epoch milliseconds (as
// a JSON number or numeric string), RFC 3339 text, or a zone-naive local
// literal that is resolved against the display zone later. Decoding never
// fails, so one bad record cannot abort a whole batch; problems surface from
// Resolve instead.
type Timestamp struct {
	kind timestampKind
	ms   int64
	text string
}

var (
	ErrTimestampMissing = errors.New("timestamp is missing")
	ErrTimestampInvalid = errors.New("timestamp is not numeric")
)

// Millis is a Timestamp holding epoch milliseconds.
func Millis(ms int64) Timestamp {
	return Timestamp{kind: timestampMillis, ms: ms}
}

// FromTime is a Timestamp for t.
func FromTime(t time.Time) Timestamp {
	return Millis(t.UnixMilli())
}

// Text is a Timestamp holding RFC 3339 or local date-time text.
func Text(s string) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Millis(n)
	}
	return Timestamp{kind: timestampText, text: s}
}

// IsSet reports whether any value was supplied.
func (t Timestamp) IsSet() bool {
	return t.kind != timestampMissing
}

// Resolve turns the timestamp into an Instant. Local literals are read as
// wall-clock time in zone.
func (t Timestamp) Resolve(zone string) (caltime.Instant, error) {
	switch t.kind {
	case timestampMillis:
		return caltime.Instant(t.ms), nil
	case timestampText:
		if tm, err := time.Parse(time.RFC3339Nano, t.text); err == nil {
			return caltime.FromTime(tm), nil
		}
		return caltime.ParseLocalString(t.text, zone)
	case timestampInvalid:
		return 0, ErrTimestampInvalid
	default:
		return 0, ErrTimestampMissing
	}
}

func (t Timestamp) String() string {
	switch t.kind {
	case timestampMillis:
		return strconv.FormatInt(t.ms, 10)
	case timestampText, timestampInvalid:
		return t.text
	default:
		return ""
	}
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*t = Timestamp{}
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*t = Timestamp{kind: timestampInvalid, text: string(b)}
			return nil
		}
		*t = Text(s)
	default:
		n, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			// Floats are accepted when they carry no fraction.
			f, ferr := strconv.ParseFloat(string(b), 64)
			if ferr != nil || f != float64(int64(f)) {
				*t = Timestamp{kind: timestampInvalid, text: string(b)}
				return nil
			}
			n = int64(f)
		}
		*t = Millis(n)
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	switch t.kind {
	case timestampMillis:
		return []byte(strconv.FormatInt(t.ms, 10)), nil
	case timestampText, timestampInvalid:
		return json.Marshal(t.text)
	default:
		return []byte("null"), nil
	}
}

