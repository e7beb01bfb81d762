package translate

import (
	"errors"
	"strconv"
	"strings"
)

var ErrUnknownDialect = errors.New("unrecognized g-code file signature")

type Dialect int

const (
	DialectUnknown Dialect = iota
	// DialectNative is a FlashPrint xgcode container
	DialectNative
	DialectSimplify3D
	DialectSlic3r
)

const (
	signatureNative     = "xgcode 1.0"
	signatureSimplify3D = "; G-Code generated by Simplify3D(R) Version 4.1"
	signatureSlic3r     = "; generated by Slic3r take4"
)

func (d Dialect) String() string {
	switch d {
	case DialectNative:
		return "flashprint"
	case DialectSimplify3D:
		return "simplify3d"
	case DialectSlic3r:
		return "slic3r"
	default:
		return "unknown"
	}
}

// Detect matches the first line of a file against the known signatures.
func Detect(firstLine string) Dialect {
	switch {
	case strings.HasPrefix(firstLine, signatureNative):
		return DialectNative
	case strings.HasPrefix(firstLine, signatureSimplify3D):
		return DialectSimplify3D
	case strings.HasPrefix(firstLine, signatureSlic3r):
		return DialectSlic3r
	}
	return DialectUnknown
}

// newline returns the line terminator the printer expects for d.
func (d Dialect) newline() string {
	if d == DialectNative {
		return "\n"
	}
	return "\r\n"
}

// Speeds are the rapid move speeds in mm/min announced in a slicer's
// settings comments.
type Speeds struct {
	RapidXY int
	RapidZ  int
	Default int
}

func DefaultSpeeds() Speeds {
	return Speeds{
		RapidXY: 4800,
		RapidZ:  300,
		Default: 3600,
	}
}

// parse picks up lines such as ";   rapidXYspeed,4800" and reports whether
// comment was a speed setting.
func (s *Speeds) parse(comment string) bool {
	parts := strings.Split(strings.TrimSpace(comment), ",")
	if len(parts) < 2 {
		return false
	}
	var dst *int
	switch {
	case strings.HasPrefix(parts[0], ";   defaultSpeed"):
		dst = &s.Default
	case strings.HasPrefix(parts[0], ";   rapidXYspeed"):
		dst = &s.RapidXY
	case strings.HasPrefix(parts[0], ";   rapidZspeed"):
		dst = &s.RapidZ
	default:
		return false
	}
	v, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return false
	}
	*dst = v
	return true
}
