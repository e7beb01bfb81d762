package adv3

import (
	"context"
	"testing"

	"github.com/roffe/adv3/pkg/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMachineStatus(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		want   DeviceStatus
		wantOK bool
	}{
		{
			name:   "ready",
			reply:  "CMD M119 Received.\r\nEndstop: X-max:0 Y-max:0 Z-min:0\r\nMachineStatus: READY\r\nMoveMode: READY\r\nok\r\n",
			want:   DeviceStatus{State: StateReady},
			wantOK: true,
		},
		{
			name:   "building with limits",
			reply:  "CMD M119 Received.\r\nEndstop: X-max:1 Y-max:0 Z-min:1\r\nMachineStatus: BUILDING_FROM_SD\r\nMoveMode: MOVING\r\nok\r\n",
			want:   DeviceStatus{State: StateBuilding, LimitX: true, LimitZ: true},
			wantOK: true,
		},
		{
			name:   "anything else is busy",
			reply:  "CMD M119 Received.\r\nEndstop: X-max:0 Y-max:1 Z-min:0\r\nMachineStatus: PAUSED\r\nok\r\n",
			want:   DeviceStatus{State: StateBusy, LimitY: true},
			wantOK: true,
		},
		{
			name:  "garbage",
			reply: "CMD M119 Received.\r\nhello\r\nok\r\n",
			want:  DeviceStatus{State: StateTransfer},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DeviceStatus{State: StateTransfer}
			ok := parseMachineStatus(tt.reply, &d)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestParseTemperature(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		want   [4]int
		wantOK bool
	}{
		{"idle", "CMD M105 Received.\r\nT0:24 /0 B:23/0\r\nok\r\n", [4]int{24, 0, 23, 0}, true},
		{"heating", "CMD M105 Received.\r\nT0:180 /210 B:50/60\r\nok\r\n", [4]int{180, 210, 50, 60}, true},
		{"bad number is zero", "CMD M105 Received.\r\nT0:x /210 B:50/60\r\nok\r\n", [4]int{0, 210, 50, 60}, true},
		{"wrong layout", "CMD M105 Received.\r\nT0:180 B:50\r\nok\r\n", [4]int{1, 2, 3, 4}, false},
		{"too short", "T0:180 /210 B:50/60\r\n", [4]int{1, 2, 3, 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DeviceStatus{NozzleTemp: 1, NozzleTarget: 2, BedTemp: 3, BedTarget: 4}
			assert.Equal(t, tt.wantOK, parseTemperature(tt.reply, &d))
			assert.Equal(t, tt.want, [4]int{d.NozzleTemp, d.NozzleTarget, d.BedTemp, d.BedTarget})
		})
	}
}

func TestParseJobStatus(t *testing.T) {
	d := DeviceStatus{}
	require.True(t, parseJobStatus("CMD M27 Received.\r\nSD printing byte 1024/20480\r\nok\r\n", &d))
	assert.Equal(t, 1024, d.Progress)
	assert.Equal(t, 20480, d.ProgressMax)

	assert.False(t, parseJobStatus("CMD M27 Received.\r\nNot SD printing.\r\nok\r\n", &d))
	assert.Equal(t, 1024, d.Progress)
}

func TestParsePosition(t *testing.T) {
	d := DeviceStatus{}
	require.True(t, parsePosition("CMD M114 Received.\r\nX:10.5 Y:-20 Z:0.3 A:125.25 B:0\r\nok\r\n", &d))
	assert.Equal(t, 10.5, d.X)
	assert.Equal(t, -20.0, d.Y)
	assert.Equal(t, 0.3, d.Z)
	assert.Equal(t, 125.25, d.E)

	assert.False(t, parsePosition("CMD M114 Received.\r\nX:1 Y:2\r\nok\r\n", &d))
	assert.Equal(t, 10.5, d.X)
}

func TestSplitAny(t *testing.T) {
	assert.Equal(t, []string{"a", "", "b"}, splitAny("a::b", ":"))
	assert.Equal(t, []string{"abc"}, splitAny("abc", ":"))
	assert.Equal(t, []string{"", ""}, splitAny("/", ":/"))
}

func TestUpdateStatus(t *testing.T) {
	p, s := startPrinter(t, sim.Config{})
	p.SetState(sim.StateBuilding)
	p.SetLimits(false, true, false)
	require.NoError(t, s.Connect(context.Background()))

	assert.Equal(t, StateBusy, s.Status().State)
	require.NoError(t, s.UpdateStatus())
	st := s.Status()
	assert.Equal(t, StateBuilding, st.State)
	assert.True(t, st.LimitY)
	assert.Equal(t, 24, st.NozzleTemp)
	assert.Equal(t, 23, st.BedTemp)

	p.SetState(sim.StateReady)
	require.NoError(t, s.UpdateMachineStatus())
	assert.Equal(t, StateReady, s.Status().State)
	assert.Equal(t, []string{"M601 S1", "M119", "M105", "M27", "M114", "M119"}, p.Commands())
}

func TestUpdateStatusKeepsValuesOnError(t *testing.T) {
	p, s := startPrinter(t, sim.Config{})
	p.SetState(sim.StateBuilding)
	p.SetLimits(true, false, false)
	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.UpdateStatus())
	before := s.Status()
	require.Equal(t, StateBuilding, before.State)

	p.SetState(sim.StateReady)
	p.SetLimits(false, false, false)
	require.NoError(t, s.Command("M104 S200 T0"))
	p.Reject("M119", "Error: busy")
	p.Reject("M105", "Error: busy")

	require.NoError(t, s.UpdateMachineStatus())
	require.NoError(t, s.UpdateTemperature())
	assert.Equal(t, before, s.Status())
	assert.True(t, s.Connected())

	p.Reject("M119", "")
	require.NoError(t, s.UpdateMachineStatus())
	assert.Equal(t, StateReady, s.Status().State)
	assert.False(t, s.Status().LimitX)
}

func TestUpdateStatusNotConnected(t *testing.T) {
	s, err := New("127.0.0.1")
	require.NoError(t, err)
	assert.ErrorIs(t, s.UpdateStatus(), ErrNotConnected)
}

func TestMachineStateString(t *testing.T) {
	assert.Equal(t, "Ready", StateReady.String())
	assert.Equal(t, "Transfer", StateTransfer.String())
	assert.Equal(t, "MachineState(9)", MachineState(9).String())
}
