package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roffe/adv3/pkg/translate"
	"github.com/spf13/cobra"
)

const (
	flagFan         = "fan"
	flagOffsetZ     = "offset-z"
	flagPlayRemoval = "play-removal"
	flagBrimType    = "brim-type"
	flagBrimSpeed   = "brim-speed"
	flagBrimRatio   = "brim-ratio"
	flagBrimExtrude = "brim-extrude"
)

var translateCmd = &cobra.Command{
	Use:   "translate <input> [output]",
	Short: "translate sliced g-code for the Adventurer 3",
	Long: `Translate a Simplify3D, Slic3r or FlashPrint file. Parameters come from
the --params file with flags on top. The output defaults to the input name
with a .g extension and is only written when translation succeeds.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadParams(cmd)
		if err != nil {
			return err
		}
		out := outputName(args[0])
		if len(args) == 2 {
			out = args[1]
		}
		if err := translateFile(args[0], out, p); err != nil {
			return err
		}
		log.Infof("wrote %s", out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)
	addParamFlags(translateCmd)
}

func addParamFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	d := translate.DefaultParameters()
	f.Bool(flagFan, d.EnclosureFanOn, "run the enclosure fan")
	f.Float64(flagOffsetZ, d.OffsetZ, "Z offset in mm")
	f.Float64(flagPlayRemoval, d.PlayRemovalLength, "Z lift in mm after upward layer changes, 0 disables")
	f.String(flagBrimType, d.BrimSpeedType.String(), "brim speed: nochange, absolute or ratio")
	f.Int(flagBrimSpeed, d.BrimSpeed, "absolute brim speed in mm/min")
	f.Int(flagBrimRatio, d.BrimSpeedRatio, "brim speed in percent of the sliced speed")
	f.Int(flagBrimExtrude, d.BrimExtrudeRatio, "brim extrusion in percent")
}

// loadParams reads the parameter file and applies the flags given on the
// command line.
func loadParams(cmd *cobra.Command) (translate.Parameters, error) {
	p, err := translate.LoadParameters(cmd.Flag(flagParams).Value.String())
	if err != nil {
		return p, err
	}

	f := cmd.Flags()
	if f.Changed(flagFan) {
		p.EnclosureFanOn, _ = f.GetBool(flagFan)
	}
	if f.Changed(flagOffsetZ) {
		p.OffsetZ, _ = f.GetFloat64(flagOffsetZ)
	}
	if f.Changed(flagPlayRemoval) {
		p.PlayRemovalLength, _ = f.GetFloat64(flagPlayRemoval)
	}
	if f.Changed(flagBrimType) {
		s, _ := f.GetString(flagBrimType)
		if p.BrimSpeedType, err = translate.ParseBrimSpeedType(s); err != nil {
			return p, err
		}
	}
	if f.Changed(flagBrimSpeed) {
		p.BrimSpeed, _ = f.GetInt(flagBrimSpeed)
	}
	if f.Changed(flagBrimRatio) {
		p.BrimSpeedRatio, _ = f.GetInt(flagBrimRatio)
	}
	if f.Changed(flagBrimExtrude) {
		p.BrimExtrudeRatio, _ = f.GetInt(flagBrimExtrude)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid parameters: %w", err)
	}
	return p, nil
}

func outputName(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".g"
}

// translateFile writes to a temporary file next to out and renames it into
// place once translation has succeeded.
func translateFile(in, out string, p translate.Parameters) error {
	if filepath.Clean(in) == filepath.Clean(out) {
		return fmt.Errorf("refusing to overwrite input %s", in)
	}
	src, err := os.Open(in)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(out), "."+filepath.Base(out)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := translate.Translate(src, tmp, p); err != nil {
		tmp.Close()
		return fmt.Errorf("%s: %w", in, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), out)
}
