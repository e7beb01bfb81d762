package translate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
)

type BrimSpeedType int

const (
	BrimSpeedNoChange BrimSpeedType = iota
	BrimSpeedAbsolute
	BrimSpeedRatio
)

func (b BrimSpeedType) String() string {
	switch b {
	case BrimSpeedNoChange:
		return "nochange"
	case BrimSpeedAbsolute:
		return "absolute"
	case BrimSpeedRatio:
		return "ratio"
	default:
		return fmt.Sprintf("BrimSpeedType(%d)", int(b))
	}
}

// ParseBrimSpeedType is the inverse of BrimSpeedType.String
func ParseBrimSpeedType(s string) (BrimSpeedType, error) {
	for _, b := range []BrimSpeedType{BrimSpeedNoChange, BrimSpeedAbsolute, BrimSpeedRatio} {
		if b.String() == s {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown brim speed type %q", s)
}

// Parameters control one translation run. The JSON names are shared with
// parameter files written by earlier tools.
type Parameters struct {
	EnclosureFanOn bool `json:"EnclosureFanOn"`
	// Motor currents in percent
	MotorX int `json:"MotorX"`
	MotorY int `json:"MotorY"`
	MotorZ int `json:"MotorZ"`
	MotorA int `json:"MotorA"`
	MotorB int `json:"MotorB"`
	// Z lift in mm inserted after every upward layer change, 0 disables it
	PlayRemovalLength float64 `json:"PlayRemovalLength"`
	OffsetZ           float64 `json:"OffsetZ"`

	BrimSpeedType    BrimSpeedType `json:"BrimSpeedTypeValue"`
	BrimSpeed        int           `json:"BrimSpeed"`      // mm/min
	BrimSpeedRatio   int           `json:"BrimSpeedRatio"` // percent of the sliced speed
	BrimExtrudeRatio int           `json:"BrimExtrudeRatio"`
}

func DefaultParameters() Parameters {
	return Parameters{
		MotorX:            100,
		MotorY:            100,
		MotorZ:            40,
		MotorA:            100,
		MotorB:            20,
		PlayRemovalLength: 0.5,
		BrimSpeedType:     BrimSpeedNoChange,
		BrimSpeed:         420,
		BrimSpeedRatio:    50,
		BrimExtrudeRatio:  20,
	}
}

// Validate returns every out of range value joined into one error.
func (p Parameters) Validate() error {
	var errs []error
	checkInt := func(name string, v, min, max int) {
		if v < min || v > max {
			errs = append(errs, fmt.Errorf("%s: %d out of range [%d, %d]", name, v, min, max))
		}
	}
	checkFloat := func(name string, v, min, max float64) {
		r := math.Round(v*100) / 100
		if r < min || r > max {
			errs = append(errs, fmt.Errorf("%s: %.2f out of range [%.0f, %.0f]", name, r, min, max))
		}
	}
	checkInt("MotorX", p.MotorX, 1, 100)
	checkInt("MotorY", p.MotorY, 1, 100)
	checkInt("MotorZ", p.MotorZ, 1, 100)
	checkInt("MotorA", p.MotorA, 1, 100)
	checkInt("MotorB", p.MotorB, 1, 100)
	checkFloat("PlayRemovalLength", p.PlayRemovalLength, 0, 10)
	checkFloat("OffsetZ", p.OffsetZ, -10, 10)
	checkInt("BrimSpeed", p.BrimSpeed, 1, 4800)
	checkInt("BrimSpeedRatio", p.BrimSpeedRatio, 1, 999)
	checkInt("BrimExtrudeRatio", p.BrimExtrudeRatio, 1, 999)
	if p.BrimSpeedType < BrimSpeedNoChange || p.BrimSpeedType > BrimSpeedRatio {
		errs = append(errs, fmt.Errorf("BrimSpeedTypeValue: unknown value %d", int(p.BrimSpeedType)))
	}
	return errors.Join(errs...)
}

// LoadParameters reads a parameter file on top of the defaults. A missing
// file is not an error.
func LoadParameters(filename string) (Parameters, error) {
	p := DefaultParameters()
	b, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		return p, err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	return p, nil
}

func SaveParameters(filename string, p Parameters) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, append(b, '\n'), 0644)
}
