package adv3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roffe/adv3/pkg/frame"
)

// Variant is the file transfer protocol spoken by the printer firmware.
type Variant int

const (
	// VariantFramed sends 4096 byte blocks in CRC checked frames, each
	// acknowledged by the printer
	VariantFramed Variant = iota
	// VariantStream writes the file as is, used by V2.1 firmware
	VariantStream
)

func (v Variant) String() string {
	switch v {
	case VariantFramed:
		return "framed"
	case VariantStream:
		return "stream"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// VariantFor picks the transfer variant from the session begin reply.
func VariantFor(handshake string) Variant {
	if strings.Contains(handshake, "V2.1") {
		return VariantStream
	}
	return VariantFramed
}

// Timing holds delays working around firmware behaviour seen on real
// printers. They are tuned by observation and are mitigations only, none of
// them guarantees the printer has finished what it was doing.
type Timing struct {
	// FirstBlockPause follows the first framed block. Without it the printer
	// has been seen acknowledging block 0 twice, shifting every later reply.
	FirstBlockPause time.Duration
	// StreamTailPause follows the last chunk of a streamed file.
	StreamTailPause time.Duration
	// CancelSettle is how long a streaming printer shows its transfer failed
	// dialog after a cancel. The connection can't be used until it closes.
	CancelSettle time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		FirstBlockPause: 100 * time.Millisecond,
		StreamTailPause: 100 * time.Millisecond,
		CancelSettle:    15 * time.Second,
	}
}

// sendFramed uploads r as framed blocks. It returns early without error when
// the job is cancelled.
func (s *Session) sendFramed(r io.Reader, job *Job) error {
	buf := make([]byte, frame.BlockSize)
	for seq := uint32(0); !job.Cancelled(); seq++ {
		n, err := readChunk(r, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		f := frame.New(seq, buf[:n])
		b, err := f.MarshalBinary()
		if err != nil {
			return err
		}
		s.log.WithField("seq", seq).Trace(f.String())
		reply, err := s.Exchange(b)
		if err != nil {
			return err
		}
		if !IsOK(reply) {
			return &ProtocolError{Cmd: fmt.Sprintf("block %d", seq), Reply: reply}
		}
		job.advance(int64(n))
		if seq == 0 {
			time.Sleep(s.timing.FirstBlockPause)
		}
	}
	return nil
}

// sendStream writes r in chunks without waiting for replies.
func (s *Session) sendStream(r io.Reader, job *Job) error {
	buf := make([]byte, frame.BlockSize)
	for !job.Cancelled() {
		n, err := readChunk(r, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			time.Sleep(s.timing.StreamTailPause)
			return nil
		}
		if err := s.Write(buf[:n]); err != nil {
			return err
		}
		job.advance(int64(n))
	}
	return nil
}

// cancelTransfer runs after the end write command of a cancelled job.
func (s *Session) cancelTransfer(ctx context.Context, v Variant) {
	switch v {
	case VariantFramed:
		// the printer shows a dialog on its console, starting over clears it
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dialTimeout+s.timeout)
		defer cancel()
		if err := s.Reconnect(ctx); err != nil {
			s.log.WithError(err).Warn("reconnect after cancelled transfer failed")
		}
	case VariantStream:
		s.log.Infof("waiting %s for printer to time out the transfer", s.timing.CancelSettle)
		time.Sleep(s.timing.CancelSettle)
	}
}

// readChunk fills buf as far as r allows, n is 0 at the end of the file.
func readChunk(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return n, nil
	}
	return n, err
}
