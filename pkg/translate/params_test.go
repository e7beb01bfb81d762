package translate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParametersValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(p *Parameters)
		wantErr string
	}{
		{name: "defaults"},
		{name: "motor low", modify: func(p *Parameters) { p.MotorX = 0 }, wantErr: "MotorX"},
		{name: "motor high", modify: func(p *Parameters) { p.MotorB = 101 }, wantErr: "MotorB"},
		{name: "play removal", modify: func(p *Parameters) { p.PlayRemovalLength = 10.01 }, wantErr: "PlayRemovalLength"},
		{name: "play removal rounds", modify: func(p *Parameters) { p.PlayRemovalLength = 10.004 }},
		{name: "offset", modify: func(p *Parameters) { p.OffsetZ = -10.5 }, wantErr: "OffsetZ"},
		{name: "brim speed", modify: func(p *Parameters) { p.BrimSpeed = 4801 }, wantErr: "BrimSpeed"},
		{name: "brim ratio", modify: func(p *Parameters) { p.BrimSpeedRatio = 1000 }, wantErr: "BrimSpeedRatio"},
		{name: "extrude ratio", modify: func(p *Parameters) { p.BrimExtrudeRatio = 0 }, wantErr: "BrimExtrudeRatio"},
		{name: "speed type", modify: func(p *Parameters) { p.BrimSpeedType = 3 }, wantErr: "BrimSpeedTypeValue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParameters()
			if tt.modify != nil {
				tt.modify(&p)
			}
			err := p.Validate()
			if (err != nil) != (tt.wantErr != "") {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParametersJSON(t *testing.T) {
	b, err := json.Marshal(DefaultParameters())
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	for _, key := range []string{
		"EnclosureFanOn", "MotorX", "MotorY", "MotorZ", "MotorA", "MotorB",
		"PlayRemovalLength", "OffsetZ", "BrimSpeedTypeValue", "BrimSpeed",
		"BrimSpeedRatio", "BrimExtrudeRatio",
	} {
		assert.Contains(t, m, key)
	}
	assert.Len(t, m, 12)
}

func TestLoadSaveParameters(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "params.json")

	p, err := LoadParameters(fn)
	require.NoError(t, err)
	assert.Equal(t, DefaultParameters(), p)

	p.EnclosureFanOn = true
	p.OffsetZ = -0.25
	p.BrimSpeedType = BrimSpeedRatio
	require.NoError(t, SaveParameters(fn, p))

	got, err := LoadParameters(fn)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	// partial files keep defaults for the missing keys
	require.NoError(t, os.WriteFile(fn, []byte(`{"MotorZ": 60}`), 0644))
	got, err = LoadParameters(fn)
	require.NoError(t, err)
	assert.Equal(t, 60, got.MotorZ)
	assert.Equal(t, 100, got.MotorX)

	require.NoError(t, os.WriteFile(fn, []byte(`{`), 0644))
	_, err = LoadParameters(fn)
	assert.Error(t, err)
}

func TestParseBrimSpeedType(t *testing.T) {
	for _, b := range []BrimSpeedType{BrimSpeedNoChange, BrimSpeedAbsolute, BrimSpeedRatio} {
		got, err := ParseBrimSpeedType(b.String())
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
	_, err := ParseBrimSpeedType("fast")
	assert.Error(t, err)
}
