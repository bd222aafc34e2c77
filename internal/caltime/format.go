package caltime

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/locales"
)

// Format renders instant in zone according to pattern, using locale-aware
// month and weekday names.
//
// Supported tokens:
//
//	YYYY YY          year
//	M MM MMM MMMM    month number, padded, abbreviated name, full name
//	D DD             day of month
//	d dd ddd dddd    weekday number (Sunday=0), short, abbreviated, full name
//	H HH h hh        hour (24h / 12h)
//	m mm s ss SSS    minute, second, millisecond
//	A a              AM/PM, am/pm
//	Z ZZ             UTC offset as +07:00 / +0700
//
// Text inside square brackets is copied verbatim. Any other letter is an
// *InvalidPatternError.
func Format(instant Instant, zone, pattern, locale string) (string, error) {
	tokens, err := compilePattern(pattern)
	if err != nil {
		return "", err
	}
	loc, err := LoadZone(zone)
	if err != nil {
		return "", err
	}
	t := instant.In(loc)
	tr := translatorFor(locale)

	var b strings.Builder
	for _, tok := range tokens {
		if tok.literal {
			b.WriteString(tok.text)
			continue
		}
		b.WriteString(renderToken(tok.text, t, tr))
	}
	return b.String(), nil
}

// ValidatePattern checks pattern without formatting anything.
func ValidatePattern(pattern string) error {
	_, err := compilePattern(pattern)
	return err
}

type patternToken struct {
	text    string
	literal bool
}

var knownTokens = map[string]bool{
	"YYYY": true, "YY": true,
	"M": true, "MM": true, "MMM": true, "MMMM": true,
	"D": true, "DD": true,
	"d": true, "dd": true, "ddd": true, "dddd": true,
	"H": true, "HH": true, "h": true, "hh": true,
	"m": true, "mm": true,
	"s": true, "ss": true, "SSS": true,
	"A": true, "a": true,
	"Z": true, "ZZ": true,
}

func compilePattern(pattern string) ([]patternToken, error) {
	var out []patternToken
	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch {
		case c == '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				return nil, &InvalidPatternError{Pattern: pattern, Token: pattern[i:], Pos: i}
			}
			out = append(out, patternToken{text: pattern[i+1 : i+1+end], literal: true})
			i += end + 2
		case isLetter(c):
			j := i + 1
			for j < len(pattern) && pattern[j] == c {
				j++
			}
			tok := pattern[i:j]
			if !knownTokens[tok] {
				return nil, &InvalidPatternError{Pattern: pattern, Token: tok, Pos: i}
			}
			out = append(out, patternToken{text: tok})
			i = j
		default:
			j := i + 1
			for j < len(pattern) && !isLetter(pattern[j]) && pattern[j] != '[' {
				j++
			}
			out = append(out, patternToken{text: pattern[i:j], literal: true})
			i = j
		}
	}
	return out, nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func renderToken(tok string, t time.Time, tr locales.Translator) string {
	switch tok {
	case "YYYY":
		return fmt.Sprintf("%04d", t.Year())
	case "YY":
		return fmt.Sprintf("%02d", t.Year()%100)
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "MM":
		return fmt.Sprintf("%02d", int(t.Month()))
	case "MMM":
		return tr.MonthAbbreviated(t.Month())
	case "MMMM":
		return tr.MonthWide(t.Month())
	case "D":
		return strconv.Itoa(t.Day())
	case "DD":
		return fmt.Sprintf("%02d", t.Day())
	case "d":
		return strconv.Itoa(int(t.Weekday()))
	case "dd":
		return tr.WeekdayShort(t.Weekday())
	case "ddd":
		return tr.WeekdayAbbreviated(t.Weekday())
	case "dddd":
		return tr.WeekdayWide(t.Weekday())
	case "H":
		return strconv.Itoa(t.Hour())
	case "HH":
		return fmt.Sprintf("%02d", t.Hour())
	case "h":
		return strconv.Itoa(hour12(t.Hour()))
	case "hh":
		return fmt.Sprintf("%02d", hour12(t.Hour()))
	case "m":
		return strconv.Itoa(t.Minute())
	case "mm":
		return fmt.Sprintf("%02d", t.Minute())
	case "s":
		return strconv.Itoa(t.Second())
	case "ss":
		return fmt.Sprintf("%02d", t.Second())
	case "SSS":
		return fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
	case "A":
		if t.Hour() < 12 {
			return "AM"
		}
		return "PM"
	case "a":
		if t.Hour() < 12 {
			return "am"
		}
		return "pm"
	case "Z":
		return t.Format("-07:00")
	case "ZZ":
		return t.Format("-0700")
	}
	return tok
}

func hour12(h int) int {
	if h%12 == 0 {
		return 12
	}
	return h % 12
}
