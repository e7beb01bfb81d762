package sim

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/roffe/adv3/pkg/frame"
	"github.com/roffe/adv3/pkg/gcode"
	"github.com/sirupsen/logrus"
)

const userDir = "0:/user/"

type upload struct {
	name string
	size int
	seq  uint32
	data bytes.Buffer
}

type client struct {
	p      *Printer
	conn   net.Conn
	r      *bufio.Reader
	log    logrus.FieldLogger
	upload *upload
}

func (c *client) reply(cmd string, lines ...string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "CMD %s Received.\r\n", cmd)
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\r\n")
	}
	_, err := io.WriteString(c.conn, b.String())
	return err
}

func (c *client) command() error {
	c.conn.SetReadDeadline(time.Time{})
	line, err := c.r.ReadString('\n')
	if err != nil {
		return err
	}
	return c.dispatch(trimCommand(line))
}

func (c *client) dispatch(cmd string) error {
	if cmd == "" {
		return nil
	}
	c.p.record(cmd)
	c.log.WithField("cmd", cmd).Debug("command")

	code, args, _ := strings.Cut(cmd, " ")
	p := c.p
	if msg, ok := p.rejected(code); ok {
		return c.reply(code, msg)
	}
	switch strings.ToUpper(code) {
	case "M601":
		if p.cfg.Refuse {
			return c.reply(code, "Control failed.", "ok")
		}
		if p.cfg.Stream {
			return c.reply(code, "Control Success V2.1.", "ok")
		}
		return c.reply(code, "Control Success.", "ok")
	case "M602":
		return c.reply(code, "Control Release.", "ok")
	case "M115":
		return c.reply(code,
			"Machine Type: FlashForge Adventurer III",
			"Machine Name: Adventurer III",
			"Firmware: "+p.cfg.Firmware,
			"SN: SNADVA0000001",
			"X: 150 Y: 150 Z: 150",
			"Tool Count: 1",
			"ok")
	case "M119":
		p.mu.Lock()
		endstop := fmt.Sprintf("Endstop: X-max:%d Y-max:%d Z-min:%d", b2i(p.limits[0]), b2i(p.limits[1]), b2i(p.limits[2]))
		state := p.state
		p.mu.Unlock()
		return c.reply(code, endstop, "MachineStatus: "+state, "MoveMode: "+state, "Status: S:0 L:0 J:0 F:0", "ok")
	case "M105":
		p.mu.Lock()
		heat(&p.nozzle, p.cfg.HeatStep)
		heat(&p.bed, p.cfg.HeatStep)
		temp := fmt.Sprintf("T0:%d /%d B:%d/%d", p.nozzle[0], p.nozzle[1], p.bed[0], p.bed[1])
		p.mu.Unlock()
		return c.reply(code, temp, "ok")
	case "M27":
		p.mu.Lock()
		progress := fmt.Sprintf("SD printing byte %d/%d", p.progress[0], p.progress[1])
		p.mu.Unlock()
		return c.reply(code, progress, "ok")
	case "M114":
		p.mu.Lock()
		pos := fmt.Sprintf("X:%g Y:%g Z:%g A:%g B:0", p.pos[0], p.pos[1], p.pos[2], p.pos[3])
		p.mu.Unlock()
		return c.reply(code, pos, "ok")
	case "M104", "M140":
		return c.setTarget(code, cmd)
	case "G1":
		return c.move(code, cmd)
	case "M28":
		return c.beginUpload(code, args)
	case "M29":
		return c.reply(code, "Done saving file.", "ok")
	case "M23":
		return c.selectFile(code, strings.TrimSpace(args))
	case "M26":
		p.SetState(StateReady)
		return c.reply(code, "ok")
	default:
		return c.reply(code, "ok")
	}
}

func (c *client) setTarget(code, cmd string) error {
	l, err := gcode.Parse(cmd)
	if err != nil {
		return c.reply(code, err.Error())
	}
	s, ok := l.Value('S')
	if !ok {
		return c.reply(code, "missing S")
	}
	c.p.mu.Lock()
	if code == "M104" {
		c.p.nozzle[1] = int(s)
	} else {
		c.p.bed[1] = int(s)
	}
	c.p.mu.Unlock()
	return c.reply(code, "ok")
}

func (c *client) move(code, cmd string) error {
	l, err := gcode.Parse(cmd)
	if err != nil {
		return c.reply(code, err.Error())
	}
	c.p.mu.Lock()
	for i, key := range []byte("XYZE") {
		v, ok := l.Value(key)
		if !ok {
			continue
		}
		if i < 3 {
			end := []float64{EndstopX, EndstopY, EndstopZ}[i]
			c.p.limits[i] = v >= end
			v = math.Min(v, end)
		}
		c.p.pos[i] = v
	}
	c.p.mu.Unlock()
	return c.reply(code, "ok")
}

// heat moves t[0] at most step degrees towards the target t[1].
func heat(t *[2]int, step int) {
	if step <= 0 {
		return
	}
	switch d := t[1] - t[0]; {
	case d > step:
		t[0] += step
	case d < -step:
		t[0] -= step
	default:
		t[0] = t[1]
	}
}

// beginUpload handles "M28 <size> 0:/user/<name>".
func (c *client) beginUpload(code, args string) error {
	f := strings.Fields(args)
	if len(f) != 2 || !strings.HasPrefix(f[1], userDir) {
		return c.reply(code, "Error: bad arguments")
	}
	size, err := strconv.Atoi(f[0])
	if err != nil || size < 0 {
		return c.reply(code, "Error: bad size")
	}
	u := &upload{name: strings.TrimPrefix(f[1], userDir), size: size}
	if err := c.reply(code, "Writing to file: "+f[1], "ok"); err != nil {
		return err
	}
	if size == 0 {
		c.p.store(u)
		return nil
	}
	c.upload = u
	c.log.WithField("file", u.name).Debugf("receiving %d bytes", size)
	return nil
}

func (c *client) selectFile(code, path string) error {
	name := strings.TrimPrefix(path, userDir)
	b, ok := c.p.File(name)
	if !ok {
		return c.reply(code, "Error: file not found")
	}
	c.p.mu.Lock()
	c.p.state = StateBuilding
	c.p.progress = [2]int{0, len(b)}
	c.p.mu.Unlock()
	return c.reply(code, fmt.Sprintf("File opened: %s Size: %d", name, len(b)), "File selected", "ok")
}

// receive reads the next part of an upload.
func (c *client) receive() error {
	if c.p.cfg.Stream {
		return c.receiveStream()
	}
	return c.receiveFrame()
}

func (c *client) receiveStream() error {
	u := c.upload
	buf := make([]byte, frame.BlockSize)
	want := u.size - u.data.Len()
	if want < len(buf) {
		buf = buf[:want]
	}
	c.conn.SetReadDeadline(time.Now().Add(c.p.cfg.UploadTimeout))
	n, err := c.r.Read(buf)
	u.data.Write(buf[:n])
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			c.abort("no data")
			return nil
		}
		return err
	}
	c.finishIfDone()
	return nil
}

func (c *client) receiveFrame() error {
	c.conn.SetReadDeadline(time.Now().Add(c.p.cfg.UploadTimeout))
	head, err := c.r.Peek(len(frame.Magic))
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			c.abort("no data")
			return nil
		}
		return err
	}
	if !bytes.Equal(head, frame.Magic) {
		// a command in the middle of an upload aborts it
		c.abort("command received")
		return c.command()
	}
	b := make([]byte, frame.Size)
	if _, err := io.ReadFull(c.r, b); err != nil {
		return err
	}
	f, err := frame.Decode(b)
	if err != nil {
		c.abort(err.Error())
		_, werr := io.WriteString(c.conn, "Error: "+err.Error()+"\r\n")
		return werr
	}
	u := c.upload
	if f.Seq() != u.seq {
		c.abort(fmt.Sprintf("expected block %d, got %d", u.seq, f.Seq()))
		_, werr := fmt.Fprintf(c.conn, "Error: block %d out of order\r\n", f.Seq())
		return werr
	}
	u.seq++
	u.data.Write(f.Data())
	c.log.WithField("seq", f.Seq()).Trace(f.String())
	if _, err := fmt.Fprintf(c.conn, "%d ok.\r\n", f.Seq()); err != nil {
		return err
	}
	c.finishIfDone()
	return nil
}

func (c *client) finishIfDone() {
	if c.upload.data.Len() < c.upload.size {
		return
	}
	c.p.store(c.upload)
	c.log.WithField("file", c.upload.name).Debug("upload complete")
	c.upload = nil
}

func (c *client) abort(reason string) {
	c.log.WithField("file", c.upload.name).Warnf("upload aborted: %s", reason)
	c.upload = nil
}

func (p *Printer) store(u *upload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[u.name] = u.data.Bytes()[:u.size]
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
