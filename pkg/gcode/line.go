package gcode

import (
	"fmt"
	"strconv"
	"strings"
)

// NoValue is the precision of a bare letter field such as the X in "G28 X Y"
const NoValue = -1

// CommentMarker starts a comment, either as the whole line or trailing fields
const CommentMarker = ';'

type Field struct {
	Key       byte
	Value     float64
	Precision int
	Position  int
}

func (f Field) HasValue() bool {
	return f.Precision != NoValue
}

func (f Field) String() string {
	if f.Precision < 0 {
		return string(f.Key)
	}
	return string(f.Key) + strconv.FormatFloat(f.Value, 'f', f.Precision, 64)
}

// ParseError reports a line that can't be tokenized. Key is the repeated
// letter, or the stray character when Unexpected is set.
type ParseError struct {
	Key        byte
	Line       string
	Unexpected bool
}

func (e *ParseError) Error() string {
	what := "duplicate field"
	if e.Unexpected {
		what = "unexpected character"
	}
	return fmt.Sprintf("%s %q in line %q", what, e.Key, strings.TrimSpace(e.Line))
}

// Line is one parsed line of G-code. Fields are kept in source order and
// keys are unique.
type Line struct {
	fields  []Field
	Comment string
	Raw     string
}

// Parse tokenizes a single line. A key appearing twice fails the parse, as
// does a stray character with more fields after it. Trailing text without
// letters, such as a "*57" checksum, is ignored.
func Parse(raw string) (*Line, error) {
	l := &Line{Raw: raw}
	work := strings.TrimSpace(raw)
	if strings.HasPrefix(work, string(CommentMarker)) {
		l.Comment = work
		return l, nil
	}
	if pos := strings.IndexByte(work, CommentMarker); pos >= 0 {
		l.Comment = work[pos:]
		work = work[:pos]
	}

	for i := 0; ; i++ {
		work = strings.TrimLeft(work, " \t")
		if len(work) == 0 {
			break
		}
		if !isLetter(work[0]) {
			if strings.IndexFunc(work, func(r rune) bool { return r < 0x80 && isLetter(byte(r)) }) >= 0 {
				return nil, &ParseError{Key: work[0], Line: raw, Unexpected: true}
			}
			break
		}
		f, n := scanField(work)
		f.Position = i
		if !l.add(f) {
			return nil, &ParseError{Key: f.Key, Line: raw}
		}
		work = work[n:]
	}
	return l, nil
}

// scanField consumes a letter and the numeric run following it.
func scanField(s string) (Field, int) {
	f := Field{Key: s[0], Precision: NoValue}
	n := 1
	if n < len(s) && s[n] == '-' {
		n++
	}
	var digits, decimals int
	dot := false
	for ; n < len(s); n++ {
		c := s[n]
		switch {
		case c >= '0' && c <= '9':
			digits++
			if dot {
				decimals++
			}
			continue
		case c == '.' && !dot:
			dot = true
			continue
		}
		break
	}
	if digits == 0 {
		return f, n
	}
	v, err := strconv.ParseFloat(s[1:n], 64)
	if err == nil {
		f.Value = v
	}
	f.Precision = decimals
	return f, n
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func (l *Line) add(f Field) bool {
	if l.Has(f.Key) {
		return false
	}
	l.fields = append(l.fields, f)
	return true
}

// Len returns the number of fields, comments are not counted.
func (l *Line) Len() int {
	return len(l.fields)
}

func (l *Line) Has(key byte) bool {
	_, ok := l.Get(key)
	return ok
}

func (l *Line) Get(key byte) (Field, bool) {
	for _, f := range l.fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Value returns the numeric value of key, ok is false when the key is
// missing or carries no number.
func (l *Line) Value(key byte) (float64, bool) {
	f, ok := l.Get(key)
	if !ok || !f.HasValue() {
		return 0, false
	}
	return f.Value, true
}

// Is reports whether the line carries key with exactly value, ie. Is('G', 1).
func (l *Line) Is(key byte, value float64) bool {
	v, ok := l.Value(key)
	return ok && v == value
}

// Modify runs fn on the field with key and reports whether it was found.
func (l *Line) Modify(key byte, fn func(f *Field)) bool {
	for i := range l.fields {
		if l.fields[i].Key == key {
			fn(&l.fields[i])
			return true
		}
	}
	return false
}

// Fields returns a copy of the fields in source order.
func (l *Line) Fields() []Field {
	out := make([]Field, len(l.fields))
	copy(out, l.fields)
	return out
}

// String formats the line back to text with every value rendered at its
// original precision.
func (l *Line) String() string {
	var out strings.Builder
	for i, f := range l.fields {
		if i > 0 {
			out.WriteByte(' ')
		}
		out.WriteString(f.String())
	}
	if l.Comment != "" {
		if l.Comment[0] != CommentMarker {
			out.WriteByte(CommentMarker)
		}
		out.WriteString(l.Comment)
	}
	return out.String()
}
