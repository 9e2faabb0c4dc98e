package asnmap

import (
	"net/netip"

	F "github.com/sagernet/sing/common/format"
)

// ParseErrorKind identifies which validation rule rejected a data line.
type ParseErrorKind uint8

const (
	// KindColumnCount: the line did not split into exactly five columns.
	KindColumnCount ParseErrorKind = iota
	// KindInvalidIP: the start or end field is not a parseable address.
	KindInvalidIP
	// KindFamilyMismatch: start and end belong to different address families.
	KindFamilyMismatch
	// KindInvalidRange: the start address is greater than the end address.
	KindInvalidRange
	// KindInvalidASN: the ASN field is not an unsigned 32-bit integer.
	KindInvalidASN
)

// ParseError reports why a single data line was rejected. Only the fields
// relevant to Kind are populated.
type ParseError struct {
	Kind     ParseErrorKind
	Field    string
	Value    string
	Expected int
	Found    int
	Start    netip.Addr
	End      netip.Addr
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case KindColumnCount:
		return F.ToString("expected ", e.Expected, " columns, but found ", e.Found)
	case KindInvalidIP:
		return F.ToString("invalid IP address for field ", e.Field, ": ", e.Value)
	case KindFamilyMismatch:
		return "start and end IPs are of different families"
	case KindInvalidRange:
		return F.ToString("start IP ", e.Start, " is greater than end IP ", e.End)
	case KindInvalidASN:
		return F.ToString("invalid ASN: ", e.Value)
	default:
		return "malformed line"
	}
}

// BuildError aborts a strict build at the first rejected line. It carries
// the 1-based line number within its source and the raw line text.
type BuildError struct {
	LineNumber int
	Line       string
	Err        error
}

func (e *BuildError) Error() string {
	return F.ToString("parse error on line ", e.LineNumber, ": ", e.Err, " in line: \"", e.Line, "\"")
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Warning describes one line skipped during a resilient build. Err is the
// *ParseError that rejected the line.
type Warning struct {
	LineNumber int
	Line       string
	Err        error
}

func (w Warning) String() string {
	if parseError, isParse := w.Err.(*ParseError); isParse && parseError.Kind == KindFamilyMismatch {
		return F.ToString("IP family mismatch on line ", w.LineNumber, ": \"", w.Line, "\"")
	}
	return F.ToString("parse warning on line ", w.LineNumber, ": ", w.Err, " in line: \"", w.Line, "\"")
}
