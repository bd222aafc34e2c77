package caltime

import "fmt"

// InvalidZoneError reports a zone identifier that could not be loaded.
type InvalidZoneError struct {
	Zone string
	Err  error
}

func (e *InvalidZoneError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("caltime: invalid zone %q: %v", e.Zone, e.Err)
	}
	return fmt.Sprintf("caltime: invalid zone %q", e.Zone)
}

func (e *InvalidZoneError) Unwrap() error { return e.Err }

// InvalidUnitError reports an unrecognized calendar unit.
type InvalidUnitError struct {
	Unit string
}

func (e *InvalidUnitError) Error() string {
	return fmt.Sprintf("caltime: invalid unit %q", e.Unit)
}

// InvalidPatternError reports an unsupported token in a format pattern.
type InvalidPatternError struct {
	Pattern string
	Token   string
	Pos     int
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("caltime: unsupported token %q at offset %d in pattern %q", e.Token, e.Pos, e.Pattern)
}

// UnparsableTimeError reports local date-time text that matches none of the
// accepted layouts.
type UnparsableTimeError struct {
	Text string
	Err  error
}

func (e *UnparsableTimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("caltime: cannot parse %q: %v", e.Text, e.Err)
	}
	return fmt.Sprintf("caltime: cannot parse %q", e.Text)
}

func (e *UnparsableTimeError) Unwrap() error { return e.Err }
