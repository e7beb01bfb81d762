package adv3

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// Jog limits of the Adventurer 3 in mm and mm/min
const (
	MinX, MaxX = -75.0, 80.0
	MinY, MaxY = -76.0, 75.0
	MinZ, MaxZ = -0.5, 154.0

	MaxFeedXY = 9999
	MaxFeedZ  = 1200
)

// Controller serializes all use of a Session behind one lock so status
// polling, commands and uploads never interleave on the wire.
type Controller struct {
	mu   sync.Mutex
	s    *Session
	job  atomic.Pointer[Job]
	poll int
	subs hub
}

func NewController(s *Session) *Controller {
	return &Controller{s: s}
}

func (c *Controller) Session() *Session {
	return c.s
}

// Connect opens the session and fetches a first full status.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.s.Connect(ctx); err != nil {
		return err
	}
	return c.updateStatus()
}

func (c *Controller) Close() error {
	if job := c.job.Load(); job != nil {
		job.Cancel()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.Disconnect()
}

func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.Connected()
}

func (c *Controller) Status() DeviceStatus {
	return c.s.Status()
}

// Job returns the upload in progress, or nil.
func (c *Controller) Job() *Job {
	return c.job.Load()
}

// CanStartJob is true when connected and the printer reports ready.
func (c *Controller) CanStartJob() bool {
	return c.Connected() && c.s.Status().State == StateReady
}

func (c *Controller) canStartJob() bool {
	return c.s.Connected() && c.s.Status().State == StateReady
}

// Print uploads size bytes of r and starts printing.
func (c *Controller) Print(ctx context.Context, r io.Reader, size int64, job *Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.canStartJob() {
		return fmt.Errorf("%w: %s", ErrBusy, c.s.Status().State)
	}
	if !c.job.CompareAndSwap(nil, job) {
		return ErrBusy
	}
	defer c.job.Store(nil)
	return c.s.StartJob(ctx, c.s.Variant(), r, size, job)
}

// StopJob cancels a running upload, or aborts the print on the printer.
func (c *Controller) StopJob() error {
	if job := c.job.Load(); job != nil {
		job.Cancel()
		return nil
	}
	return c.command("M26")
}

// EmergencyStop cancels a running upload, otherwise halts all motion.
func (c *Controller) EmergencyStop() error {
	if job := c.job.Load(); job != nil {
		job.Cancel()
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emergencyStop()
}

func (c *Controller) emergencyStop() error {
	if _, err := c.s.Send("M112"); err != nil {
		return err
	}
	return c.s.UpdatePosition()
}

func (c *Controller) Led(on bool) error {
	if on {
		return c.command("M146 r255 g255 b255 F0")
	}
	return c.command("M146 r0 g0 b0 F0")
}

func (c *Controller) SetNozzleTemp(celsius int) error {
	return c.readyCommand(fmt.Sprintf("M104 S%d T0", celsius))
}

func (c *Controller) SetBedTemp(celsius int) error {
	return c.readyCommand(fmt.Sprintf("M140 S%d T0", celsius))
}

func (c *Controller) MoveXY(x, y float64, feed uint) error {
	if err := checkXY(x, y, feed); err != nil {
		return err
	}
	return c.jog(fmt.Sprintf("G1 X%g Y%g F%d", x, y, feed))
}

func (c *Controller) MoveX(x float64, feed uint) error {
	if err := checkXY(x, 0, feed); err != nil {
		return err
	}
	return c.jog(fmt.Sprintf("G1 X%g F%d", x, feed))
}

func (c *Controller) MoveY(y float64, feed uint) error {
	if err := checkXY(0, y, feed); err != nil {
		return err
	}
	return c.jog(fmt.Sprintf("G1 Y%g F%d", y, feed))
}

func (c *Controller) MoveZ(z float64, feed uint) error {
	if z < MinZ || z > MaxZ {
		return fmt.Errorf("%w: Z %g not in [%g, %g]", ErrOutOfRange, z, MinZ, MaxZ)
	}
	if feed == 0 || feed > MaxFeedZ {
		return fmt.Errorf("%w: feed %d not in [1, %d]", ErrOutOfRange, feed, MaxFeedZ)
	}
	return c.jog(fmt.Sprintf("G1 Z%g F%d", z, feed))
}

// MoveE feeds filament. Nothing checks the nozzle is hot.
func (c *Controller) MoveE(e float64, feed uint) error {
	if feed == 0 {
		return fmt.Errorf("%w: feed 0", ErrOutOfRange)
	}
	return c.jog(fmt.Sprintf("G1 E%g F%d", e, feed))
}

func checkXY(x, y float64, feed uint) error {
	if feed == 0 || feed > MaxFeedXY {
		return fmt.Errorf("%w: feed %d not in [1, %d]", ErrOutOfRange, feed, MaxFeedXY)
	}
	if x < MinX || x > MaxX {
		return fmt.Errorf("%w: X %g not in [%g, %g]", ErrOutOfRange, x, MinX, MaxX)
	}
	if y < MinY || y > MaxY {
		return fmt.Errorf("%w: Y %g not in [%g, %g]", ErrOutOfRange, y, MinY, MaxY)
	}
	return nil
}

// jog stops whatever the printer is doing and sends a manual move.
func (c *Controller) jog(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.canStartJob() {
		return fmt.Errorf("%w: %s", ErrBusy, c.s.Status().State)
	}
	if err := c.emergencyStop(); err != nil {
		return err
	}
	return c.s.Command(cmd)
}

// Send passes a command from the user through as is and returns the reply.
func (c *Controller) Send(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.Send(cmd)
}

func (c *Controller) MachineInfo() (MachineInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.MachineInfo()
}

// UpdateStatus runs all status queries, waiting for the lock.
func (c *Controller) UpdateStatus() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateStatus()
}

func (c *Controller) updateStatus() error {
	if err := c.s.UpdateStatus(); err != nil {
		return err
	}
	c.subs.deliver(c.s.Status())
	return nil
}

func (c *Controller) command(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.Command(cmd)
}

func (c *Controller) readyCommand(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.canStartJob() {
		return fmt.Errorf("%w: %s", ErrBusy, c.s.Status().State)
	}
	return c.s.Command(cmd)
}
