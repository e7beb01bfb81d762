package frame

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalZeroBlock(t *testing.T) {
	f := New(0, make([]byte, BlockSize))
	b, err := f.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, Size)

	want, _ := hex.DecodeString("5a5aa5a5" + "00000000" + "00001000" + "c71c0011")
	assert.Equal(t, want, b[:HeaderSize])
	assert.Equal(t, make([]byte, BlockSize), b[HeaderSize:])
}

func TestMarshalShortBlock(t *testing.T) {
	f := New(7, []byte("G28\r\n"))
	b, err := f.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, Size)

	want, _ := hex.DecodeString("5a5aa5a5" + "00000007" + "00000005" + "09d06015")
	assert.Equal(t, want, b[:HeaderSize])
	assert.Equal(t, []byte("G28\r\n"), b[HeaderSize:HeaderSize+5])
	assert.Equal(t, make([]byte, BlockSize-5), b[HeaderSize+5:])
}

func TestMarshalTooLong(t *testing.T) {
	_, err := New(0, make([]byte, BlockSize+1)).MarshalBinary()
	assert.True(t, errors.Is(err, ErrBadLength))
}

func TestDecode(t *testing.T) {
	payload := bytes.Repeat([]byte("M104 S210 T0\r\n"), 100)
	b, err := New(42, payload).MarshalBinary()
	require.NoError(t, err)

	f, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), f.Seq())
	assert.Equal(t, payload, f.Data())
	assert.Equal(t, uint32(0xCBF43926), New(0, []byte("123456789")).Checksum())
}

func TestDecodeErrors(t *testing.T) {
	good, err := New(1, []byte("G28")).MarshalBinary()
	require.NoError(t, err)

	badMagic := append([]byte{}, good...)
	badMagic[0] = 0x00

	badCRC := append([]byte{}, good...)
	badCRC[HeaderSize] = 'M'

	badLen := append([]byte{}, good...)
	badLen[8] = 0xFF

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"short header", good[:10], ErrShortFrame},
		{"short payload", good[:HeaderSize+1], ErrShortFrame},
		{"magic", badMagic, ErrBadMagic},
		{"crc", badCRC, ErrBadCRC},
		{"length", badLen, ErrBadLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestString(t *testing.T) {
	color.NoColor = true
	s := New(3, []byte("G28\r\nG1 X1\x00")).String()
	assert.Contains(t, s, "#000003")
	assert.Contains(t, s, "47 32 38 0D 0A")
	assert.Contains(t, s, "G28.G1 X1.")
}
