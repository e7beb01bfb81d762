package adv3

import (
	"context"
	"testing"
	"time"

	"github.com/roffe/adv3/pkg/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFilamentParams() FilamentParams {
	p := DefaultFilamentParams()
	p.SpeedELow = 600
	p.SpeedEHigh = 6000
	p.SpeedXY = 9000
	p.SpeedZ = 3000
	p.TubeLength = 10
	p.PreExtrudeLength = 1
	p.HeadInnerLength = 2
	p.CleanX = 1
	p.CleanZDrop = 1
	p.PollInterval = 5 * time.Millisecond
	return p
}

// assertInOrder checks that want appears in got in the same order, other
// commands may sit in between.
func assertInOrder(t *testing.T, want, got []string) {
	t.Helper()
	i := 0
	for _, cmd := range got {
		if i < len(want) && cmd == want[i] {
			i++
		}
	}
	if i < len(want) {
		t.Fatalf("command %q not found in order, got %q", want[i], got)
	}
}

func TestFilamentParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mod     func(p *FilamentParams)
		wantErr bool
	}{
		{"defaults", func(p *FilamentParams) {}, false},
		{"temp too high", func(p *FilamentParams) { p.HighTemp = 250 }, true},
		{"negative temp", func(p *FilamentParams) { p.LowTemp = -1 }, true},
		{"slow speed zero", func(p *FilamentParams) { p.SpeedELow = 0 }, true},
		{"fast speed high", func(p *FilamentParams) { p.SpeedEHigh = 6001 }, true},
		{"xy speed", func(p *FilamentParams) { p.SpeedXY = 9001 }, true},
		{"z speed", func(p *FilamentParams) { p.SpeedZ = 3001 }, true},
		{"tube length", func(p *FilamentParams) { p.TubeLength = 0 }, true},
		{"poll interval", func(p *FilamentParams) { p.PollInterval = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultFilamentParams()
			tt.mod(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutOfRange)
			}
		})
	}
}

func TestLoadFilament(t *testing.T) {
	p, c := startController(t, sim.Config{HeatStep: 100})
	before := len(p.Commands())

	require.NoError(t, c.LoadFilament(context.Background(), testFilamentParams()))

	cmds := p.Commands()[before:]
	assertInOrder(t, []string{
		"M104 S220 T0",
		"M112", "M114", "G1 E10 F6000",
		"M112", "M114",
		"M105",
		"M112", "M114", "G1 E20 F600",
	}, cmds)
	assert.Equal(t, "G1 E20 F600", cmds[len(cmds)-1])
	assert.GreaterOrEqual(t, c.Status().NozzleTemp, 220)
}

func TestUnloadFilament(t *testing.T) {
	p, c := startController(t, sim.Config{HeatStep: 100})
	before := len(p.Commands())

	require.NoError(t, c.UnloadFilament(context.Background(), testFilamentParams()))

	cmds := p.Commands()[before:]
	assertInOrder(t, []string{
		"M104 S220 T0",
		"M105",
		"G1 E1 F600", "M112",
		"G1 E0 F600", "M112",
		"M104 S70 T0",
		"G1 E-15 F6000", "M112", "M114",
	}, cmds)
	assert.Equal(t, "M114", cmds[len(cmds)-1])

	require.NoError(t, c.UpdateStatus())
	assert.Equal(t, 70, c.Status().NozzleTarget)
	assert.Equal(t, -15.0, c.Status().E)
}

func TestCleanNozzle(t *testing.T) {
	p, c := startController(t, sim.Config{HeatStep: 100})
	params := testFilamentParams()
	ctx := context.Background()

	before := len(p.Commands())
	require.NoError(t, c.CleanNozzle(ctx, CleanPrepare, params))
	assertInOrder(t, []string{
		"G1 Z160 F3000", "M119", "M112", "M114",
		"G1 X160 F9000", "M119", "M112", "M114",
		"M104 S220 T0",
		"G1 X79 F9000", "M112",
		"G1 Z153 F3000", "M112",
		"M105",
		"G1 E1 F600", "M112",
		"G1 E0 F600", "M112",
		"G1 E-2 F6000", "M112",
	}, p.Commands()[before:])

	step := CleanPrepare.Next()
	require.Equal(t, CleanLowTemp, step)
	require.NoError(t, c.CleanNozzle(ctx, step, params))
	require.NoError(t, c.CleanNozzle(ctx, CleanHighTemp, params))

	before = len(p.Commands())
	step = CleanCutPrepare
	for {
		require.NoError(t, c.CleanNozzle(ctx, step, params))
		if step.Next() == step {
			break
		}
		step = step.Next()
	}
	assert.Equal(t, CleanInsert, step)
	cmds := p.Commands()[before:]
	assertInOrder(t, []string{
		"G1 E0 F600", "M112",
		"G1 E-2 F600", "M112",
		"G1 Z274 F3000", "M119", "M112",
		"M104 S220 T0",
		"G1 E8 F600",
	}, cmds)
	assert.Equal(t, "G1 E8 F600", cmds[len(cmds)-1])
}

func TestFilamentCancel(t *testing.T) {
	p, c := startController(t, sim.Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := c.LoadFilament(ctx, testFilamentParams())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cmds := p.Commands()
	assert.Equal(t, []string{"M112", "M114", "M104 S0 T0"}, cmds[len(cmds)-3:])
}

func TestFilamentBusy(t *testing.T) {
	p, c := startController(t, sim.Config{})
	p.SetState(sim.StateBuilding)
	require.NoError(t, c.UpdateStatus())

	err := c.UnloadFilament(context.Background(), testFilamentParams())
	assert.ErrorIs(t, err, ErrBusy)
	assert.NotContains(t, p.Commands(), "M104 S220 T0")

	bad := testFilamentParams()
	bad.HighTemp = 300
	assert.ErrorIs(t, c.LoadFilament(context.Background(), bad), ErrOutOfRange)
}

func TestCleanStep(t *testing.T) {
	tests := []struct {
		name string
		step CleanStep
		next CleanStep
	}{
		{"prepare", CleanPrepare, CleanLowTemp},
		{"hot", CleanHighTemp, CleanHighTemp},
		{"cool", CleanLowTemp, CleanLowTemp},
		{"cut", CleanCutPrepare, CleanTubeInsert},
		{"tube", CleanTubeInsert, CleanInsert},
		{"insert", CleanInsert, CleanInsert},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.step.String())
			assert.Equal(t, tt.next, tt.step.Next())
			got, err := ParseCleanStep(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.step, got)
		})
	}
	_, err := ParseCleanStep("scrub")
	assert.Error(t, err)
	assert.Equal(t, "CleanStep(9)", CleanStep(9).String())
}
