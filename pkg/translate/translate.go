package translate

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roffe/adv3/pkg/gcode"
)

const (
	// nativeHeaderSize is the fixed part of an xgcode container header
	nativeHeaderSize = 0x20
	// nativeOffsetPos holds a little endian int32 with the offset of the
	// g-code text from the start of the file
	nativeOffsetPos = 0x14

	// initialZ keeps the first Z move of a file from looking like a layer
	// change
	initialZ = 10000.0
)

// Translate rewrites the slicer output in r for the printer and writes it
// to w. Nothing is written when the file is not recognized. On any other
// error w may hold partial output that must be discarded.
func Translate(r io.Reader, w io.Writer, p Parameters) error {
	br := bufio.NewReader(r)
	first, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	dialect := Detect(first)
	if dialect == DialectUnknown {
		return ErrUnknownDialect
	}

	t := NewTranslator(w, dialect, p)
	if dialect == DialectNative {
		if err := skipNativeHeader(br, first); err != nil {
			return err
		}
	} else {
		l, err := gcode.Parse(first)
		if err != nil {
			return fmt.Errorf("line 1: %w", err)
		}
		if err := t.Act(l); err != nil {
			return err
		}
	}

	if err := gcode.Stream(br, t); err != nil {
		return err
	}
	return t.Flush()
}

// skipNativeHeader consumes the binary container header. first is the
// already consumed signature line.
func skipNativeHeader(br *bufio.Reader, first string) error {
	if len(first) > nativeHeaderSize {
		return fmt.Errorf("malformed xgcode header: signature line is %d bytes", len(first))
	}
	hdr := make([]byte, nativeHeaderSize)
	copy(hdr, first)
	if _, err := io.ReadFull(br, hdr[len(first):]); err != nil {
		return fmt.Errorf("failed to read xgcode header: %w", err)
	}
	offset := int32(binary.LittleEndian.Uint32(hdr[nativeOffsetPos:]))
	if offset < nativeHeaderSize {
		return fmt.Errorf("malformed xgcode header: g-code offset 0x%X", offset)
	}
	if _, err := io.CopyN(io.Discard, br, int64(offset-nativeHeaderSize)); err != nil {
		return fmt.Errorf("failed to skip xgcode header: %w", err)
	}
	return nil
}

// Translator is the per line actor doing the actual rewriting.
type Translator struct {
	w       *bufio.Writer
	nl      string
	dialect Dialect
	params  Parameters
	speeds  Speeds
	pos     *gcode.Tracker

	prologueDone bool
	epilogueDone bool
	brim         bool
	// extruding turns on with the first move carrying X, Y and E
	extruding bool
}

func NewTranslator(w io.Writer, d Dialect, p Parameters) *Translator {
	t := &Translator{
		w:       bufio.NewWriter(w),
		nl:      d.newline(),
		dialect: d,
		params:  p,
		speeds:  DefaultSpeeds(),
		pos:     gcode.NewTracker(),
	}
	t.pos.Z = initialZ
	return t
}

// Speeds returns the speeds picked up from the file so far.
func (t *Translator) Speeds() Speeds {
	return t.speeds
}

func (t *Translator) Flush() error {
	return t.w.Flush()
}

func (t *Translator) Act(l *gcode.Line) error {
	if l.Len() == 0 {
		if l.Comment == "" {
			return nil
		}
		return t.comment(l)
	}

	prevZ := t.pos.Z
	if err := t.pos.Act(l); err != nil {
		return err
	}
	if l.Is('G', 1) {
		drop, err := t.move(l, prevZ)
		if err != nil || drop {
			return err
		}
	}
	return t.writeln(l.String())
}

// move applies the G1 rewrites and reports whether the line is dropped.
func (t *Translator) move(l *gcode.Line, prevZ float64) (bool, error) {
	hasX, hasY, hasZ, hasE := l.Has('X'), l.Has('Y'), l.Has('Z'), l.Has('E')
	if hasX && hasY && hasE {
		t.extruding = true
	}

	switch {
	case !t.extruding && hasE && !hasX && !hasY && !hasZ:
		// priming before the first printing move
		return true, nil
	case hasZ:
		if t.pos.Absolute && t.params.OffsetZ != 0 {
			l.Modify('Z', func(f *gcode.Field) { f.Value += t.params.OffsetZ })
		}
		if t.pos.Absolute && t.pos.Z > prevZ {
			speed := t.speeds.RapidZ
			if t.dialect == DialectNative {
				speed = int(t.pos.F)
			}
			if err := t.playRemoval(speed); err != nil {
				return false, err
			}
		}
	case t.brim && hasX && hasY && hasE:
		if t.params.BrimExtrudeRatio != 100 {
			ratio := float64(t.params.BrimExtrudeRatio) / 100
			l.Modify('E', func(f *gcode.Field) { f.Value *= ratio })
		}
		if !l.Has('F') {
			break
		}
		switch t.params.BrimSpeedType {
		case BrimSpeedAbsolute:
			speed := float64(t.params.BrimSpeed)
			l.Modify('F', func(f *gcode.Field) { f.Value = speed })
		case BrimSpeedRatio:
			speed := t.pos.F * float64(t.params.BrimSpeedRatio) / 100
			l.Modify('F', func(f *gcode.Field) { f.Value = speed })
		}
	}
	return false, nil
}

func (t *Translator) comment(l *gcode.Line) error {
	c := l.Comment
	switch t.dialect {
	case DialectSimplify3D:
		if t.speeds.parse(c) {
			return nil
		}
		switch {
		case strings.HasPrefix(c, "; layer end"):
			return t.epilogue()
		case strings.HasPrefix(c, "; process"):
			return t.prologue()
		case strings.HasPrefix(c, "; feature skirt"):
			t.brim = true
		case strings.HasPrefix(c, "; feature"):
			t.brim = false
		}
	case DialectSlic3r:
		if t.speeds.parse(c) {
			return nil
		}
		switch {
		case strings.HasPrefix(c, "; start gcode"):
			return t.prologue()
		case strings.HasPrefix(c, ";END gcode for filament"):
			return t.epilogue()
		}
	default:
		return t.writeln(l.String())
	}
	return nil
}

func (t *Translator) prologue() error {
	if t.prologueDone {
		return nil
	}
	t.prologueDone = true
	p := t.params
	lines := []string{
		"G28",
		"M132 X Y Z A B",
		fmt.Sprintf("G1 Z50.000 F%d", t.speeds.RapidZ),
		fmt.Sprintf("G161 X Y F%d", t.speeds.RapidXY),
		"M7 T0",
		"M6 T0",
	}
	if p.EnclosureFanOn {
		lines = append(lines, "M651")
	}
	lines = append(lines, fmt.Sprintf("M907 X%d Y%d Z%d A%d B%d", p.MotorX, p.MotorY, p.MotorZ, p.MotorA, p.MotorB))
	return t.writeln(lines...)
}

func (t *Translator) epilogue() error {
	if t.epilogueDone {
		return nil
	}
	t.epilogueDone = true
	lines := []string{
		"M104 S0 T0",
		"M140 S0 T0",
		fmt.Sprintf("G162 Z F%d", t.speeds.RapidZ),
		"M107",
		"G28 X Y",
	}
	if t.params.EnclosureFanOn {
		lines = append(lines, "M652")
	}
	lines = append(lines, "M132 X Y Z A B", "G91", "M18")
	return t.writeln(lines...)
}

// playRemoval lifts Z by the configured distance to take up slack in the
// Z screw before the next layer.
func (t *Translator) playRemoval(speed int) error {
	if t.params.PlayRemovalLength == 0 {
		return nil
	}
	return t.writeln(
		"G91",
		fmt.Sprintf("G1 Z%.1f F%d", t.params.PlayRemovalLength, speed),
		"G90",
	)
}

func (t *Translator) writeln(lines ...string) error {
	for _, s := range lines {
		if _, err := t.w.WriteString(s); err != nil {
			return err
		}
		if _, err := t.w.WriteString(t.nl); err != nil {
			return err
		}
	}
	return nil
}
