package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roffe/adv3/pkg/translate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const slic3rSample = "; generated by Slic3r take4\n; start gcode\nG1 Z0.3 F600\nG1 X1 Y1 E0.5 F1200\n;END gcode for filament\n"

func TestOutputName(t *testing.T) {
	assert.Equal(t, "cube.g", outputName("cube.gcode"))
	assert.Equal(t, filepath.Join("dir", "part.g"), outputName(filepath.Join("dir", "part.gx")))
	assert.Equal(t, "noext.g", outputName("noext"))
}

func TestTranslateFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "part.gcode")
	out := filepath.Join(dir, "part.g")
	require.NoError(t, os.WriteFile(in, []byte(slic3rSample), 0644))

	require.NoError(t, translateFile(in, out, translate.DefaultParameters()))
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(b), "G28\r\n")
	assert.Contains(t, string(b), "M18\r\n")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestTranslateFileLeavesNothingOnError(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "unknown.gcode")
	out := filepath.Join(dir, "unknown.g")
	require.NoError(t, os.WriteFile(in, []byte("; some other slicer\nG28\n"), 0644))

	err := translateFile(in, out, translate.DefaultParameters())
	assert.ErrorIs(t, err, translate.ErrUnknownDialect)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTranslateFileSameName(t *testing.T) {
	assert.Error(t, translateFile("a.g", "./a.g", translate.DefaultParameters()))
}

func TestLoadParams(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "params.json")
	p := translate.DefaultParameters()
	p.MotorZ = 60
	require.NoError(t, translate.SaveParameters(file, p))

	cmd := paramsCmd
	require.NoError(t, cmd.Flags().Set(flagBrimType, "ratio"))
	require.NoError(t, cmd.Flags().Set(flagOffsetZ, "0.2"))
	require.NoError(t, rootCmd.PersistentFlags().Set(flagParams, file))

	got, err := loadParams(cmd)
	require.NoError(t, err)
	assert.Equal(t, 60, got.MotorZ)
	assert.Equal(t, translate.BrimSpeedRatio, got.BrimSpeedType)
	assert.Equal(t, 0.2, got.OffsetZ)

	require.NoError(t, cmd.Flags().Set(flagBrimSpeed, "9000"))
	_, err = loadParams(cmd)
	assert.Error(t, err)
}

func TestMoveArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     int
		axis     string
		wantNums []float64
		wantFeed uint
		wantErr  bool
	}{
		{"xy default feed", []string{"10", "-5.5"}, 2, "xy", []float64{10, -5.5}, 3000, false},
		{"z default feed", []string{"20"}, 1, "z", []float64{20}, 600, false},
		{"e with feed", []string{"5", "150"}, 1, "e", []float64{5}, 150, false},
		{"missing position", []string{"1"}, 2, "xy", nil, 0, true},
		{"bad number", []string{"one"}, 1, "x", nil, 0, true},
		{"bad feed", []string{"1", "-3"}, 1, "x", nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nums, feed, err := moveArgs(tt.args, tt.want, tt.axis)
			if (err != nil) != tt.wantErr {
				t.Errorf("moveArgs() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.Equal(t, tt.wantNums, nums)
			assert.Equal(t, tt.wantFeed, feed)
		})
	}
}

func TestFilamentParams(t *testing.T) {
	pf := filamentCmd.PersistentFlags()
	require.NoError(t, pf.Set(flagHighTemp, "230"))
	require.NoError(t, pf.Set(flagTubeLength, "455.5"))
	t.Cleanup(func() {
		pf.Set(flagHighTemp, "220")
		pf.Set(flagTubeLength, "470")
	})

	got, err := filamentParams(filamentUnloadCmd)
	require.NoError(t, err)
	assert.Equal(t, 230, got.HighTemp)
	assert.Equal(t, 70, got.LowTemp)
	assert.Equal(t, 455.5, got.TubeLength)

	require.NoError(t, pf.Set(flagHighTemp, "300"))
	_, err = filamentParams(filamentLoadCmd)
	assert.Error(t, err)
}
