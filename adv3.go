// Package adv3 talks to FlashForge Adventurer 3 printers over the TCP control
// port: command exchange, status polling and file upload.
package adv3

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPort = 8899
	// CommandPrefix is put in front of every g-code sent on the control port
	CommandPrefix = "~"
	CRLF          = "\r\n"

	DefaultTimeout     = 5 * time.Second
	DefaultIdleTimeout = 50 * time.Millisecond
	DefaultDialTimeout = 3 * time.Second
)

const (
	cmdSessionBegin = "M601 S1"
	cmdSessionEnd   = "M602"
)

// Session is one control connection to a printer. Only one command may be
// in flight at a time and Session does no locking of its own for the wire,
// see Controller for a goroutine safe wrapper.
type Session struct {
	host        string
	port        int
	timeout     time.Duration
	idle        time.Duration
	dialTimeout time.Duration
	timing      Timing
	reader      ReplyReader
	minFirmware string
	log         logrus.FieldLogger

	conn    net.Conn
	variant Variant
	stats   counters

	statusMu sync.RWMutex
	status   DeviceStatus
}

func New(host string, opts ...Opt) (*Session, error) {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	s := &Session{
		host:        host,
		port:        DefaultPort,
		timeout:     DefaultTimeout,
		idle:        DefaultIdleTimeout,
		dialTimeout: DefaultDialTimeout,
		timing:      DefaultTiming(),
		log:         quiet,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.reader == nil {
		s.reader = IdleReplyReader{Timeout: s.timeout, Idle: s.idle}
	}
	s.log = s.log.WithField("host", s.Addr())
	return s, nil
}

func (s *Session) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

func (s *Session) Connected() bool {
	return s.conn != nil
}

// Variant is the transfer variant picked from the handshake reply.
func (s *Session) Variant() Variant {
	return s.variant
}

func (s *Session) Timing() Timing {
	return s.timing
}

// Connect dials the printer and opens a control session. Calling Connect on
// a connected session is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: s.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", s.Addr())
	if err != nil {
		return &ConnectionError{Addr: s.Addr(), Err: err}
	}
	if t, ok := conn.(*net.TCPConn); ok {
		t.SetNoDelay(true)
	}
	s.conn = conn

	reply, err := s.Send(cmdSessionBegin)
	if err != nil {
		return err
	}
	if strings.Contains(reply, "failed") {
		s.Disconnect()
		return fmt.Errorf("%w: %s", ErrHandshakeRefused, strings.TrimSpace(reply))
	}
	s.variant = VariantFor(reply)
	s.log.WithField("variant", s.variant).Debug("control session opened")

	if s.minFirmware != "" {
		if err := s.checkFirmware(); err != nil {
			s.Disconnect()
			return err
		}
	}
	return nil
}

// Disconnect ends the control session and closes the connection.
func (s *Session) Disconnect() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.Send(cmdSessionEnd); err != nil {
		// Send already dropped the connection
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.log.Debug("control session closed")
	return err
}

// Reconnect drops the connection without ending the session and connects
// again.
func (s *Session) Reconnect(ctx context.Context) error {
	s.drop()
	return s.Connect(ctx)
}

func (s *Session) drop() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Send sends a g-code command with the command prefix and returns the reply.
func (s *Session) Send(cmd string) (string, error) {
	return s.exchange(cmd, []byte(CommandPrefix+cmd+CRLF))
}

// SendRaw sends cmd without the command prefix.
func (s *Session) SendRaw(cmd string) (string, error) {
	return s.exchange(cmd, []byte(cmd+CRLF))
}

// Exchange writes b as is and returns the reply.
func (s *Session) Exchange(b []byte) (string, error) {
	return s.exchange("raw", b)
}

// Command sends cmd and fails with a ProtocolError unless the printer
// answers ok.
func (s *Session) Command(cmd string) error {
	reply, err := s.Send(cmd)
	if err != nil {
		return err
	}
	if !IsOK(reply) {
		return &ProtocolError{Cmd: cmd, Reply: reply}
	}
	return nil
}

func (s *Session) exchange(name string, b []byte) (string, error) {
	if err := s.Write(b); err != nil {
		return "", err
	}
	if name != "raw" {
		s.stats.commands.Add(1)
	}
	reply, err := s.reader.ReadReply(s.conn)
	s.stats.recv.Add(uint64(len(reply)))
	if err != nil {
		s.stats.errors.Add(1)
		s.drop()
		return reply, &IOError{Op: "read " + name, Err: err}
	}
	if name != "raw" {
		s.log.WithField("cmd", name).Debugf("reply %q", reply)
	}
	return reply, nil
}

// Write sends b without waiting for a reply.
func (s *Session) Write(b []byte) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		s.stats.errors.Add(1)
		s.drop()
		return &IOError{Op: "write", Err: err}
	}
	n, err := s.conn.Write(b)
	s.stats.sent.Add(uint64(n))
	if err != nil {
		s.stats.errors.Add(1)
		s.drop()
		return &IOError{Op: "write", Err: err}
	}
	return nil
}

// IsOK reports whether a reply ends with the printer's ok marker.
func IsOK(reply string) bool {
	r := strings.TrimSpace(reply)
	return strings.HasSuffix(r, "ok") || strings.HasSuffix(r, "ok.")
}
