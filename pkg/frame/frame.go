package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"regexp"
	"strings"

	"github.com/fatih/color"
)

const (
	HeaderSize = 16
	// BlockSize is the payload size of every frame, shorter payloads are
	// zero padded on the wire
	BlockSize = 4096
	Size      = HeaderSize + BlockSize
)

var Magic = []byte{0x5A, 0x5A, 0xA5, 0xA5}

var (
	ErrBadMagic   = errors.New("bad frame magic")
	ErrBadLength  = errors.New("bad frame length")
	ErrBadCRC     = errors.New("frame crc mismatch")
	ErrShortFrame = errors.New("short frame")
)

// Frame is one block of the framed file transfer
//
//	[5A 5A A5 A5][seq BE32][len BE32][crc32 BE32][payload padded to 4096]
type Frame struct {
	seq  uint32
	data []byte
}

func New(seq uint32, data []byte) *Frame {
	return &Frame{
		seq:  seq,
		data: data,
	}
}

func (f *Frame) Seq() uint32 {
	return f.seq
}

func (f *Frame) Len() int {
	return len(f.data)
}

func (f *Frame) Data() []byte {
	return f.data
}

// Checksum is the IEEE CRC32 of the unpadded payload.
func (f *Frame) Checksum() uint32 {
	return crc32.ChecksumIEEE(f.data)
}

func (f *Frame) MarshalBinary() ([]byte, error) {
	if len(f.data) > BlockSize {
		return nil, fmt.Errorf("%w: payload %d bytes, max %d", ErrBadLength, len(f.data), BlockSize)
	}
	buf := make([]byte, Size)
	copy(buf, Magic)
	binary.BigEndian.PutUint32(buf[4:], f.seq)
	binary.BigEndian.PutUint32(buf[8:], uint32(len(f.data)))
	binary.BigEndian.PutUint32(buf[12:], f.Checksum())
	copy(buf[HeaderSize:], f.data)
	return buf, nil
}

func (f *Frame) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return ErrShortFrame
	}
	if !bytes.Equal(b[:4], Magic) {
		return ErrBadMagic
	}
	n := binary.BigEndian.Uint32(b[8:])
	if n > BlockSize {
		return fmt.Errorf("%w: %d", ErrBadLength, n)
	}
	if len(b) < HeaderSize+int(n) {
		return ErrShortFrame
	}
	data := make([]byte, n)
	copy(data, b[HeaderSize:])
	if crc := crc32.ChecksumIEEE(data); crc != binary.BigEndian.Uint32(b[12:]) {
		return fmt.Errorf("%w: got %08X want %08X", ErrBadCRC, crc, binary.BigEndian.Uint32(b[12:]))
	}
	f.seq = binary.BigEndian.Uint32(b[4:])
	f.data = data
	return nil
}

// Decode parses a frame as read from the wire.
func Decode(b []byte) (*Frame, error) {
	f := &Frame{}
	if err := f.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return f, nil
}

var (
	yellow = color.New(color.FgHiBlue).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
)

var printable = regexp.MustCompile("[^A-Za-z0-9.,;:!? ]+")

// String renders a one line dump with the first 16 payload bytes.
func (f *Frame) String() string {
	preview := f.data
	if len(preview) > 16 {
		preview = preview[:16]
	}

	var out strings.Builder
	out.WriteString(green("#%06d", f.seq) + " || ")
	out.WriteString(red("%4d bytes crc %08X", len(f.data), f.Checksum()))
	out.WriteString(" || ")

	var hexView strings.Builder
	for i, b := range preview {
		hexView.WriteString(fmt.Sprintf("%02X", b))
		if i != len(preview)-1 {
			hexView.WriteString(" ")
		}
	}
	out.WriteString(fmt.Sprintf("%-47s", hexView.String()))
	out.WriteString(" || ")
	out.WriteString(yellow("%-16s", printable.ReplaceAllString(string(preview), ".")))
	return out.String()
}
