package cmd

import (
	"strconv"

	"github.com/roffe/adv3"
	"github.com/spf13/cobra"
)

const (
	flagHighTemp   = "high-temp"
	flagLowTemp    = "low-temp"
	flagTubeLength = "tube-length"
)

var filamentCmd = &cobra.Command{
	Use:   "filament",
	Short: "load, unload and nozzle cleaning procedures",
}

var filamentLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "heat up and feed filament through the guide tube",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := filamentParams(cmd)
		if err != nil {
			return err
		}
		return withController(cmd, func(c *adv3.Controller) error {
			if err := c.LoadFilament(cmd.Context(), p); err != nil {
				return err
			}
			yesNo("Filament out of the nozzle, stop feeding?")
			return c.StopFilament()
		})
	},
}

var filamentUnloadCmd = &cobra.Command{
	Use:   "unload",
	Short: "heat up and pull the filament out of the guide tube",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := filamentParams(cmd)
		if err != nil {
			return err
		}
		return withController(cmd, func(c *adv3.Controller) error {
			return c.UnloadFilament(cmd.Context(), p)
		})
	},
}

var filamentStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "stop the extruder and turn the nozzle heater off",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(c *adv3.Controller) error {
			return c.StopFilament()
		})
	},
}

var filamentCleanCmd = &cobra.Command{
	Use:   "clean prepare|hot|cool|cut|tube|insert",
	Short: "run one step of the nozzle cleaning procedure",
	Long: `Nozzle cleaning runs in steps with work on the head in between:

  prepare  park the head for the cleaning tool and pull the filament back
  cool     let the nozzle cool down before cleaning
  hot      heat the nozzle again
  cut      push the filament out of the head base to cut it
  tube     pull it back so the guide tube can be seated
  insert   feed filament until "filament stop"`,
	Args:      cobra.ExactValidArgs(1),
	ValidArgs: []string{"prepare", "hot", "cool", "cut", "tube", "insert"},
	RunE: func(cmd *cobra.Command, args []string) error {
		step, err := adv3.ParseCleanStep(args[0])
		if err != nil {
			return err
		}
		p, err := filamentParams(cmd)
		if err != nil {
			return err
		}
		return withController(cmd, func(c *adv3.Controller) error {
			if err := c.CleanNozzle(cmd.Context(), step, p); err != nil {
				return err
			}
			if next := step.Next(); next != step {
				log.Infof("next step: filament clean %s", next)
			}
			return nil
		})
	},
}

func init() {
	def := adv3.DefaultFilamentParams()
	pf := filamentCmd.PersistentFlags()
	pf.Int(flagHighTemp, def.HighTemp, "nozzle temperature for moving filament")
	pf.Int(flagLowTemp, def.LowTemp, "nozzle temperature after unloading")
	pf.Float64(flagTubeLength, def.TubeLength, "guide tube length in mm")

	filamentCmd.AddCommand(filamentLoadCmd, filamentUnloadCmd, filamentStopCmd, filamentCleanCmd)
	rootCmd.AddCommand(filamentCmd)
}

func filamentParams(cmd *cobra.Command) (adv3.FilamentParams, error) {
	p := adv3.DefaultFilamentParams()
	var err error
	if p.HighTemp, err = strconv.Atoi(cmd.Flag(flagHighTemp).Value.String()); err != nil {
		return p, err
	}
	if p.LowTemp, err = strconv.Atoi(cmd.Flag(flagLowTemp).Value.String()); err != nil {
		return p, err
	}
	if p.TubeLength, err = strconv.ParseFloat(cmd.Flag(flagTubeLength).Value.String(), 64); err != nil {
		return p, err
	}
	return p, p.Validate()
}
