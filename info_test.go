package adv3

import (
	"context"
	"testing"

	"github.com/roffe/adv3/pkg/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const m115Reply = "CMD M115 Received.\r\n" +
	"Machine Type: FlashForge Adventurer III\r\n" +
	"Machine Name: Adventurer III\r\n" +
	"Firmware: v1.1.7\r\n" +
	"SN: SNADVA9501419\r\n" +
	"X: 150 Y: 150 Z: 150\r\n" +
	"Tool Count: 1\r\n" +
	"ok\r\n"

func TestParseMachineInfo(t *testing.T) {
	mi := parseMachineInfo(m115Reply)
	assert.Equal(t, MachineInfo{
		Type:         "FlashForge Adventurer III",
		Name:         "Adventurer III",
		Firmware:     "v1.1.7",
		SerialNumber: "SNADVA9501419",
		ToolCount:    1,
		X:            150,
		Y:            150,
		Z:            150,
	}, mi)
}

func TestCanonicalVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"v1.1.7", "v1.1.7"},
		{"V2.1", "v2.1.0"},
		{"2.1.0", "v2.1.0"},
		{" 1.2 ", "v1.2.0"},
		{"latest", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalVersion(tt.in))
		})
	}
}

func TestMachineInfo(t *testing.T) {
	_, s := startPrinter(t, sim.Config{Firmware: "v2.2.0", Stream: true})
	require.NoError(t, s.Connect(context.Background()))
	mi, err := s.MachineInfo()
	require.NoError(t, err)
	assert.Equal(t, "v2.2.0", mi.Firmware)
	assert.Equal(t, 150, mi.Z)
}

func TestMinimumFirmware(t *testing.T) {
	tests := []struct {
		name    string
		min     string
		wantErr bool
	}{
		{"older required", "1.0", false},
		{"same", "1.1.7", false},
		{"newer required", "v1.2.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, s := startPrinter(t, sim.Config{Firmware: "v1.1.7"}, OptMinimumFirmware(tt.min))
			err := s.Connect(context.Background())
			if !tt.wantErr {
				require.NoError(t, err)
				assert.True(t, s.Connected())
				return
			}
			require.Error(t, err)
			assert.False(t, IsRecoverable(err))
			assert.False(t, s.Connected())
			assert.Equal(t, []string{"M601 S1", "M115", "M602"}, p.Commands())
		})
	}
}
