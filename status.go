package adv3

import (
	"fmt"
	"strconv"
	"strings"
)

type MachineState int

const (
	// StateBusy is also the state before the first status poll
	StateBusy MachineState = iota
	StateReady
	StateBuilding
	StateTransfer
)

func (m MachineState) String() string {
	switch m {
	case StateBusy:
		return "Busy"
	case StateReady:
		return "Ready"
	case StateBuilding:
		return "Building"
	case StateTransfer:
		return "Transfer"
	default:
		return fmt.Sprintf("MachineState(%d)", int(m))
	}
}

// DeviceStatus is the last known state of the printer.
type DeviceStatus struct {
	State  MachineState
	LimitX bool
	LimitY bool
	LimitZ bool

	NozzleTemp   int
	NozzleTarget int
	BedTemp      int
	BedTarget    int

	// Progress and ProgressMax are the SD card print byte counters
	Progress    int
	ProgressMax int

	X, Y, Z, E float64
}

func (d DeviceStatus) String() string {
	return fmt.Sprintf("nozzle %d/%d bed %d/%d state %s job %d/%d pos X:%.2f Y:%.2f Z:%.2f E:%.2f",
		d.NozzleTemp, d.NozzleTarget, d.BedTemp, d.BedTarget, d.State,
		d.Progress, d.ProgressMax, d.X, d.Y, d.Z, d.E)
}

const (
	cmdMachineStatus = "M119"
	cmdTemperature   = "M105"
	cmdJobStatus     = "M27"
	cmdPosition      = "M114"
)

// Status returns a copy of the last polled status.
func (s *Session) Status() DeviceStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Session) setState(m MachineState) MachineState {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	prev := s.status.State
	s.status.State = m
	return prev
}

// UpdateMachineStatus polls endstops and machine state. Like the other
// Update functions, a reply that can't be parsed keeps the previous values
// and only IO errors are returned.
func (s *Session) UpdateMachineStatus() error {
	return s.update(cmdMachineStatus, parseMachineStatus)
}

func (s *Session) UpdateTemperature() error {
	return s.update(cmdTemperature, parseTemperature)
}

func (s *Session) UpdateJobStatus() error {
	return s.update(cmdJobStatus, parseJobStatus)
}

func (s *Session) UpdatePosition() error {
	return s.update(cmdPosition, parsePosition)
}

// UpdateStatus runs all four status queries.
func (s *Session) UpdateStatus() error {
	for _, fn := range []func() error{
		s.UpdateMachineStatus,
		s.UpdateTemperature,
		s.UpdateJobStatus,
		s.UpdatePosition,
	} {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) update(cmd string, parse func(string, *DeviceStatus) bool) error {
	reply, err := s.Send(cmd)
	if err != nil {
		return err
	}
	if !IsOK(reply) {
		s.log.WithField("cmd", cmd).Debugf("status reply not ok: %q", reply)
		return nil
	}
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if !parse(reply, &s.status) {
		s.log.WithField("cmd", cmd).Debugf("unexpected status layout: %q", reply)
	}
	return nil
}

// parseMachineStatus reads the M119 reply
//
//	CMD M119 Received.
//	Endstop: X-max:0 Y-max:0 Z-min:0
//	MachineStatus: READY
//	MoveMode: READY
//	ok
func parseMachineStatus(reply string, d *DeviceStatus) bool {
	found := false
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Endstop"):
			f := strings.Split(line, " ")
			if len(f) != 4 {
				continue
			}
			d.LimitX = !strings.HasSuffix(f[1], "0")
			d.LimitY = !strings.HasSuffix(f[2], "0")
			d.LimitZ = !strings.HasSuffix(f[3], "0")
			found = true
		case strings.HasPrefix(line, "MachineStatus"):
			switch {
			case strings.HasSuffix(line, "READY"):
				d.State = StateReady
			case strings.HasSuffix(line, "BUILDING_FROM_SD"):
				d.State = StateBuilding
			default:
				d.State = StateBusy
			}
			found = true
		}
	}
	return found
}

// parseTemperature reads "T0:25 /0 B:24/0" from the second reply line.
func parseTemperature(reply string, d *DeviceStatus) bool {
	f, ok := statusFields(reply, ":/B", 6)
	if !ok {
		return false
	}
	d.NozzleTemp = atoi(f[1])
	d.NozzleTarget = atoi(f[2])
	d.BedTemp = atoi(f[4])
	d.BedTarget = atoi(f[5])
	return true
}

// parseJobStatus reads "SD printing byte 10/100".
func parseJobStatus(reply string, d *DeviceStatus) bool {
	f, ok := statusFields(reply, " /", 5)
	if !ok {
		return false
	}
	d.Progress = atoi(f[3])
	d.ProgressMax = atoi(f[4])
	return true
}

// parsePosition reads "X:10 Y:20 Z:0.3 A:5 B:0", A being the extruder.
func parsePosition(reply string, d *DeviceStatus) bool {
	f, ok := statusFields(reply, " :", 10)
	if !ok {
		return false
	}
	d.X = atof(f[1])
	d.Y = atof(f[3])
	d.Z = atof(f[5])
	d.E = atof(f[7])
	return true
}

// statusFields splits the second line of a reply at every separator byte,
// keeping empty fields, and checks the field count.
func statusFields(reply, seps string, want int) ([]string, bool) {
	lines := strings.Split(reply, "\n")
	if len(lines) < 3 {
		return nil, false
	}
	line := strings.TrimSpace(lines[1])
	if line == "" {
		return nil, false
	}
	f := splitAny(line, seps)
	if len(f) != want {
		return nil, false
	}
	return f, true
}

func splitAny(s, seps string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(seps, s[i]) >= 0 {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func atoi(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}
