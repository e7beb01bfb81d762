package adv3

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// FilamentParams tunes the filament procedures. Temperatures are in °C,
// speeds in mm/min and lengths in mm.
type FilamentParams struct {
	LowTemp    int
	HighTemp   int
	SpeedELow  int
	SpeedEHigh int
	SpeedXY    int
	SpeedZ     int

	// TubeLength is the guide tube from the spool holder to the head
	TubeLength float64
	// PreExtrudeLength is pushed and pulled back to soften the tip
	PreExtrudeLength float64
	// HeadInnerLength is the filament path inside the head base
	HeadInnerLength float64
	// CleanX and CleanZDrop move the nozzle to where the cleaning tool fits
	CleanX     float64
	CleanZDrop float64

	// PollInterval is how often the status is read while waiting on the printer
	PollInterval time.Duration
}

func DefaultFilamentParams() FilamentParams {
	return FilamentParams{
		LowTemp:          70,
		HighTemp:         220,
		SpeedELow:        180,
		SpeedEHigh:       2400,
		SpeedXY:          3000,
		SpeedZ:           420,
		TubeLength:       470,
		PreExtrudeLength: 10,
		HeadInnerLength:  80,
		CleanX:           90,
		CleanZDrop:       120,
		PollInterval:     DefaultPollInterval,
	}
}

func (p FilamentParams) Validate() error {
	var errs []error
	check := func(name string, v, min, max int) {
		if v < min || v > max {
			errs = append(errs, fmt.Errorf("%w: %s %d not in [%d,%d]", ErrOutOfRange, name, v, min, max))
		}
	}
	check("low temp", p.LowTemp, 0, 240)
	check("high temp", p.HighTemp, 0, 240)
	check("slow extrude speed", p.SpeedELow, 1, 6000)
	check("fast extrude speed", p.SpeedEHigh, 1, 6000)
	check("xy speed", p.SpeedXY, 1, 9000)
	check("z speed", p.SpeedZ, 1, 3000)
	for name, v := range map[string]float64{
		"tube length":        p.TubeLength,
		"pre extrude length": p.PreExtrudeLength,
		"head inner length":  p.HeadInnerLength,
		"clean x":            p.CleanX,
		"clean z drop":       p.CleanZDrop,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s %g must be positive", ErrOutOfRange, name, v))
		}
	}
	if p.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: poll interval %s", ErrOutOfRange, p.PollInterval))
	}
	return errors.Join(errs...)
}

// CleanStep is one stage of the nozzle cleaning procedure. The stages are
// run one at a time with manual work on the head in between.
type CleanStep int

const (
	// CleanPrepare homes Z and X, heats up, parks the head for the cleaning
	// tool and pulls the filament back into the head base
	CleanPrepare CleanStep = iota
	CleanHighTemp
	CleanLowTemp
	// CleanCutPrepare pushes the filament out of the head base to be cut
	CleanCutPrepare
	// CleanTubeInsert pulls the filament back so the guide tube can be seated
	CleanTubeInsert
	// CleanInsert lifts the head, heats up and feeds filament until stopped
	CleanInsert
)

var cleanStepNames = []string{"prepare", "hot", "cool", "cut", "tube", "insert"}

func (s CleanStep) String() string {
	if s < 0 || int(s) >= len(cleanStepNames) {
		return fmt.Sprintf("CleanStep(%d)", int(s))
	}
	return cleanStepNames[s]
}

// Next is the stage usually run after s.
func (s CleanStep) Next() CleanStep {
	switch s {
	case CleanPrepare:
		return CleanLowTemp
	case CleanCutPrepare:
		return CleanTubeInsert
	case CleanTubeInsert:
		return CleanInsert
	}
	return s
}

func ParseCleanStep(name string) (CleanStep, error) {
	for i, n := range cleanStepNames {
		if n == name {
			return CleanStep(i), nil
		}
	}
	return 0, fmt.Errorf("unknown cleaning step %q", name)
}

// LoadFilament heats the nozzle while pushing filament through the guide
// tube at high speed, then keeps feeding slowly until StopFilament.
func (c *Controller) LoadFilament(ctx context.Context, p FilamentParams) error {
	return c.runFilament(ctx, "load", p, func(f *filamentRun) error {
		if err := c.SetNozzleTemp(p.HighTemp); err != nil {
			return err
		}
		if err := f.extrude(ctx, p.TubeLength, p.SpeedEHigh); err != nil {
			return err
		}
		if err := f.heated(ctx, p.HighTemp); err != nil {
			return err
		}
		f.log.Info("feeding filament, stop when it comes out of the nozzle")
		return f.feed(p.TubeLength, p.SpeedELow)
	})
}

// UnloadFilament heats the nozzle, softens the tip and pulls the filament
// back out of the guide tube.
func (c *Controller) UnloadFilament(ctx context.Context, p FilamentParams) error {
	return c.runFilament(ctx, "unload", p, func(f *filamentRun) error {
		if err := c.SetNozzleTemp(p.HighTemp); err != nil {
			return err
		}
		if err := f.heated(ctx, p.HighTemp); err != nil {
			return err
		}
		if err := f.extrude(ctx, p.PreExtrudeLength, p.SpeedELow); err != nil {
			return err
		}
		if err := f.extrude(ctx, -p.PreExtrudeLength, p.SpeedELow); err != nil {
			return err
		}
		if err := c.SetNozzleTemp(p.LowTemp); err != nil {
			return err
		}
		return f.extrude(ctx, -p.TubeLength*1.5, p.SpeedEHigh)
	})
}

// CleanNozzle runs one stage of the nozzle cleaning procedure.
func (c *Controller) CleanNozzle(ctx context.Context, step CleanStep, p FilamentParams) error {
	return c.runFilament(ctx, "clean "+step.String(), p, func(f *filamentRun) error {
		switch step {
		case CleanPrepare:
			return f.cleanPrepare(ctx)
		case CleanHighTemp:
			return c.SetNozzleTemp(p.HighTemp)
		case CleanLowTemp:
			return c.SetNozzleTemp(p.LowTemp)
		case CleanCutPrepare:
			return f.extrude(ctx, p.HeadInnerLength, p.SpeedELow)
		case CleanTubeInsert:
			return f.extrude(ctx, -p.HeadInnerLength, p.SpeedELow)
		case CleanInsert:
			if err := f.home(ctx, 'Z', 121, p.SpeedZ); err != nil {
				return err
			}
			if err := c.SetNozzleTemp(p.HighTemp); err != nil {
				return err
			}
			if err := f.heated(ctx, p.HighTemp); err != nil {
				return err
			}
			return f.feed(p.TubeLength, p.SpeedELow)
		}
		return fmt.Errorf("unknown cleaning step %d", step)
	})
}

// StopFilament stops any move and turns the nozzle heater off.
func (c *Controller) StopFilament() error {
	if err := c.EmergencyStop(); err != nil {
		return err
	}
	return c.SetNozzleTemp(0)
}

func (c *Controller) runFilament(ctx context.Context, name string, p FilamentParams, fn func(*filamentRun) error) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !c.CanStartJob() {
		return fmt.Errorf("%w: %s", ErrBusy, c.Status().State)
	}
	f := &filamentRun{c: c, p: p, log: c.s.log.WithField("procedure", name)}
	f.log.Info("start")
	if err := fn(f); err != nil {
		if ctx.Err() != nil {
			f.log.Warn("cancelled, stopping")
			if serr := c.StopFilament(); serr != nil {
				f.log.WithError(serr).Warn("stop failed")
			}
		}
		return err
	}
	f.log.Info("done")
	return nil
}

type filamentRun struct {
	c   *Controller
	p   FilamentParams
	log logrus.FieldLogger
}

func (f *filamentRun) cleanPrepare(ctx context.Context) error {
	c, p := f.c, f.p
	if err := f.home(ctx, 'Z', 160, p.SpeedZ); err != nil {
		return err
	}
	if err := f.home(ctx, 'X', 160, p.SpeedXY); err != nil {
		return err
	}
	if err := c.SetNozzleTemp(p.HighTemp); err != nil {
		return err
	}
	if err := f.travel(ctx, 'X', -p.CleanX, p.SpeedXY); err != nil {
		return err
	}
	if err := f.travel(ctx, 'Z', -p.CleanZDrop, p.SpeedZ); err != nil {
		return err
	}
	if err := f.heated(ctx, p.HighTemp); err != nil {
		return err
	}
	if err := f.extrude(ctx, p.PreExtrudeLength, p.SpeedELow); err != nil {
		return err
	}
	if err := f.extrude(ctx, -p.PreExtrudeLength, p.SpeedELow); err != nil {
		return err
	}
	return f.extrude(ctx, -p.HeadInnerLength, p.SpeedEHigh)
}

// feed starts moving the extruder by dist without waiting for it.
func (f *filamentRun) feed(dist float64, speed int) error {
	return f.c.MoveE(f.c.Status().E+dist, uint(speed))
}

// extrude moves the extruder by dist and stops once it should have got
// there. The printer doesn't report the end of a move.
func (f *filamentRun) extrude(ctx context.Context, dist float64, speed int) error {
	if err := f.feed(dist, speed); err != nil {
		return err
	}
	if err := sleep(ctx, moveTime(dist, speed)); err != nil {
		return err
	}
	return f.c.EmergencyStop()
}

func (f *filamentRun) move(axis byte, dist float64, speed int) error {
	st := f.c.Status()
	pos := st.X
	if axis == 'Z' {
		pos = st.Z
	}
	return f.c.readyCommand(fmt.Sprintf("G1 %c%g F%d", axis, pos+dist, speed))
}

// travel moves axis by dist and stops once it should have got there.
func (f *filamentRun) travel(ctx context.Context, axis byte, dist float64, speed int) error {
	if err := f.move(axis, dist, speed); err != nil {
		return err
	}
	if err := sleep(ctx, moveTime(dist, speed)); err != nil {
		return err
	}
	return f.c.EmergencyStop()
}

// home moves axis towards its endstop and stops when the switch triggers.
func (f *filamentRun) home(ctx context.Context, axis byte, dist float64, speed int) error {
	if err := f.move(axis, dist, speed); err != nil {
		return err
	}
	f.log.Debugf("waiting for %c endstop", axis)
	if err := f.wait(ctx, func(st DeviceStatus) bool {
		if axis == 'Z' {
			return st.LimitZ
		}
		return st.LimitX
	}); err != nil {
		return err
	}
	return f.c.EmergencyStop()
}

func (f *filamentRun) heated(ctx context.Context, temp int) error {
	f.log.Infof("heating nozzle to %d°C", temp)
	return f.wait(ctx, func(st DeviceStatus) bool {
		return st.NozzleTemp >= temp
	})
}

// wait refreshes the status until cond holds.
func (f *filamentRun) wait(ctx context.Context, cond func(DeviceStatus) bool) error {
	t := time.NewTicker(f.p.PollInterval)
	defer t.Stop()
	for {
		if err := f.c.UpdateStatus(); err != nil {
			return err
		}
		if cond(f.c.Status()) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func moveTime(dist float64, speed int) time.Duration {
	return time.Duration(math.Abs(dist) * 60 / float64(speed) * float64(time.Second))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
