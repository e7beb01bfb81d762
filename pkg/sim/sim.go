// Package sim emulates the control port of an Adventurer 3 closely enough to
// test against without a printer.
package sim

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	StateReady    = "READY"
	StateBuilding = "BUILDING_FROM_SD"
	StateBusy     = "BUSY"
)

type Config struct {
	// Stream makes the printer announce V2.1 firmware and take raw uploads
	Stream bool
	// Refuse fails every session begin
	Refuse   bool
	Firmware string
	// UploadTimeout aborts an upload when no data arrives for this long
	UploadTimeout time.Duration
	// HeatStep moves the nozzle and bed temperature this many degrees
	// towards their targets on every M105, zero keeps them where they are
	HeatStep int
	Logger   logrus.FieldLogger
}

// Endstop positions, a move reaching one of them stops there and triggers
// the switch.
const (
	EndstopX = 80.0
	EndstopY = 75.0
	EndstopZ = 154.0
)

type Printer struct {
	cfg Config
	log logrus.FieldLogger

	mu       sync.Mutex
	state    string
	limits   [3]bool
	nozzle   [2]int
	bed      [2]int
	pos      [4]float64
	progress [2]int
	files    map[string][]byte
	commands []string
	rejects  map[string]string

	ln     net.Listener
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config) *Printer {
	if cfg.Firmware == "" {
		cfg.Firmware = "v1.1.7"
		if cfg.Stream {
			cfg.Firmware = "v2.1.8"
		}
	}
	if cfg.UploadTimeout == 0 {
		cfg.UploadTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}
	return &Printer{
		cfg:     cfg,
		log:     cfg.Logger.WithField("component", "sim"),
		state:   StateReady,
		nozzle:  [2]int{24, 0},
		bed:     [2]int{23, 0},
		files:   make(map[string][]byte),
		rejects: make(map[string]string),
	}
}

// Listen binds the control port, use "127.0.0.1:0" for a random port.
func (p *Printer) Listen(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	p.ln = ln
	return ln.Addr(), nil
}

// Serve accepts connections until ctx is done or Close is called.
func (p *Printer) Serve(ctx context.Context) error {
	if p.ln == nil {
		return errors.New("sim: Serve called before Listen")
	}
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.done = make(chan struct{})
	p.mu.Unlock()
	defer close(p.done)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return p.ln.Close()
	})
	g.Go(func() error {
		for {
			conn, err := p.ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}
			g.Go(func() error {
				stop := context.AfterFunc(gctx, func() { conn.Close() })
				defer stop()
				defer conn.Close()
				p.handle(conn)
				return nil
			})
		}
	})
	err := g.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Close stops Serve and waits for it to return.
func (p *Printer) Close() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		if p.ln != nil {
			return p.ln.Close()
		}
		return nil
	}
	cancel()
	<-done
	return nil
}

func (p *Printer) handle(conn net.Conn) {
	log := p.log.WithField("remote", conn.RemoteAddr().String())
	log.Debug("client connected")
	defer log.Debug("client disconnected")

	c := &client{p: p, conn: conn, r: bufio.NewReaderSize(conn, 8192), log: log}
	for {
		var err error
		if c.upload != nil {
			err = c.receive()
		} else {
			err = c.command()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.WithError(err).Debug("connection error")
			}
			return
		}
	}
}

func (p *Printer) SetState(state string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

func (p *Printer) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetTemps sets the current nozzle and bed temperature.
func (p *Printer) SetTemps(nozzle, bed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nozzle[0] = nozzle
	p.bed[0] = bed
}

// SetLimits sets the endstop switches
func (p *Printer) SetLimits(x, y, z bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limits = [3]bool{x, y, z}
}

// Reject makes the printer answer code with msg and no ok line, an empty
// msg restores the normal reply.
func (p *Printer) Reject(code, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	code = strings.ToUpper(code)
	if msg == "" {
		delete(p.rejects, code)
		return
	}
	p.rejects[code] = msg
}

func (p *Printer) rejected(code string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg, ok := p.rejects[strings.ToUpper(code)]
	return msg, ok
}

// File returns a completed upload by the name it was sent with.
func (p *Printer) File(name string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.files[name]
	return b, ok
}

func (p *Printer) Files() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for k := range p.files {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Commands returns every command received, without prefix and line ending.
func (p *Printer) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.commands...)
}

func (p *Printer) record(cmd string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = append(p.commands, cmd)
}

func trimCommand(line string) string {
	return strings.TrimPrefix(strings.TrimSpace(line), "~")
}
