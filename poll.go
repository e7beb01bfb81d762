package adv3

import (
	"context"
	"time"
)

const DefaultPollInterval = 500 * time.Millisecond

// Poll runs one status query per tick, cycling through machine state,
// temperature, job progress and position, until ctx is done. Ticks that
// find the controller busy are skipped.
func (c *Controller) Poll(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if _, err := c.PollOnce(); err != nil {
				c.s.log.WithError(err).Warn("status poll failed")
			}
		}
	}
}

// PollOnce runs the next status query unless the controller is busy. It
// reports whether a query was made.
func (c *Controller) PollOnce() (bool, error) {
	if !c.mu.TryLock() {
		return false, nil
	}
	defer c.mu.Unlock()
	if !c.s.Connected() {
		return false, nil
	}
	var err error
	switch c.poll % 4 {
	case 0:
		err = c.s.UpdateMachineStatus()
	case 1:
		err = c.s.UpdateTemperature()
	case 2:
		err = c.s.UpdateJobStatus()
	case 3:
		err = c.s.UpdatePosition()
	}
	c.poll++
	if err != nil {
		return true, err
	}
	c.subs.deliver(c.s.Status())
	return true, nil
}
