package adv3

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// ReplyReader decides where a reply from the printer ends.
type ReplyReader interface {
	ReadReply(conn net.Conn) (string, error)
}

// IdleReplyReader treats a reply as complete when no more data arrives
// within Idle after the first bytes. The printer does not frame its
// replies, so this is timing dependent.
type IdleReplyReader struct {
	// Timeout is how long to wait for the first byte
	Timeout time.Duration
	Idle    time.Duration
}

func (r IdleReplyReader) ReadReply(conn net.Conn) (string, error) {
	var out bytes.Buffer
	buf := make([]byte, 256)
	wait := r.Timeout
	for {
		if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
			return out.String(), err
		}
		n, err := conn.Read(buf)
		out.Write(buf[:n])
		if err != nil {
			if out.Len() > 0 && (isTimeout(err) || errors.Is(err, io.EOF)) {
				return out.String(), nil
			}
			return out.String(), err
		}
		wait = r.Idle
	}
}

// MarkerReplyReader reads until the reply ends with the ok marker or the
// timeout expires.
type MarkerReplyReader struct {
	Timeout time.Duration
}

func (r MarkerReplyReader) ReadReply(conn net.Conn) (string, error) {
	var out bytes.Buffer
	buf := make([]byte, 256)
	if err := conn.SetReadDeadline(time.Now().Add(r.Timeout)); err != nil {
		return "", err
	}
	for {
		n, err := conn.Read(buf)
		out.Write(buf[:n])
		if IsOK(out.String()) {
			return out.String(), nil
		}
		if err != nil {
			return out.String(), err
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
