package gcode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"move", "G1 X10.125 Y-3.50 E0.00120 F1800", "G1 X10.125 Y-3.50 E0.00120 F1800"},
		{"bare letters", "G28 X Y", "G28 X Y"},
		{"motor currents", "M907 X100 Y100 Z40 A100 B20", "M907 X100 Y100 Z40 A100 B20"},
		{"no spaces", "G1X1.5Y2", "G1 X1.5 Y2"},
		{"lowercase keys", "M146 r255 g255 b255 F0", "M146 r255 g255 b255 F0"},
		{"trailing comment", "G92 E0 ; reset extruder", "G92 E0; reset extruder"},
		{"comment only", "; layer end", "; layer end"},
		{"crlf", "G90\r\n", "G90"},
		{"leading whitespace", "   G1 Z0.300", "G1 Z0.300"},
		{"empty", "", ""},
		{"trailing dot", "G1 X5.", "G1 X5"},
		{"trailing checksum", "G1 X5 Y2*57", "G1 X5 Y2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.String())
		})
	}
}

func TestParsePrecision(t *testing.T) {
	l, err := Parse("G1 X10.125 Y-3.50 Z F1800")
	require.NoError(t, err)

	fields := l.Fields()
	require.Len(t, fields, 5)

	want := []struct {
		key       byte
		value     float64
		precision int
	}{
		{'G', 1, 0},
		{'X', 10.125, 3},
		{'Y', -3.5, 2},
		{'Z', 0, NoValue},
		{'F', 1800, 0},
	}
	for i, w := range want {
		assert.Equal(t, w.key, fields[i].Key)
		assert.Equal(t, w.value, fields[i].Value)
		assert.Equal(t, w.precision, fields[i].Precision)
		assert.Equal(t, i, fields[i].Position)
	}
	assert.False(t, fields[3].HasValue())
}

func TestParseDuplicateKey(t *testing.T) {
	tests := []string{
		"G1 X1 X2",
		"G1 E1 Y2 E3",
		"M104 S200 S210 T0",
	}
	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			_, err := Parse(line)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse() error = %v, wantErr ParseError", err)
			}
		})
	}
}

func TestParseStrayCharacter(t *testing.T) {
	tests := []struct {
		line string
		key  byte
	}{
		{"G1 X+5 Y2 E1", '+'},
		{"G1 X5 #Y2", '#'},
		{"G1 X5 *3 E1", '*'},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			l, err := Parse(tt.line)
			assert.Nil(t, l)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse() error = %v, wantErr ParseError", err)
			}
			assert.True(t, perr.Unexpected)
			assert.Equal(t, tt.key, perr.Key)
			assert.Contains(t, err.Error(), "unexpected character")
		})
	}
}

func TestParseDuplicateInCommentIgnored(t *testing.T) {
	l, err := Parse("G1 X1 ; X2 X3")
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, "; X2 X3", l.Comment)
}

func TestLineModify(t *testing.T) {
	l, err := Parse("G1 X1 Y2 Z0.20 F600")
	require.NoError(t, err)

	ok := l.Modify('Z', func(f *Field) { f.Value += 0.15 })
	require.True(t, ok)
	assert.False(t, l.Modify('E', func(f *Field) {}))
	assert.Equal(t, "G1 X1 Y2 Z0.35 F600", l.String())

	assert.True(t, l.Is('G', 1))
	assert.False(t, l.Is('G', 0))
}

func TestStringAddsCommentMarker(t *testing.T) {
	l, err := Parse("G28")
	require.NoError(t, err)
	l.Comment = "home"
	assert.Equal(t, "G28;home", l.String())
}
