package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roffe/adv3"
	"github.com/spf13/cobra"
)

var ledCmd = &cobra.Command{
	Use:       "led on|off",
	Short:     "switch the chamber light",
	Args:      cobra.ExactValidArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(c *adv3.Controller) error {
			return c.Led(args[0] == "on")
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "abort the running print",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(c *adv3.Controller) error {
			return c.StopJob()
		})
	},
}

var estopCmd = &cobra.Command{
	Use:   "estop",
	Short: "emergency stop, halts all motion",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool(flagYes); !yes && !yesNo("Emergency stop?") {
			return nil
		}
		return withController(cmd, func(c *adv3.Controller) error {
			if err := c.EmergencyStop(); err != nil {
				return err
			}
			st := c.Status()
			log.Infof("stopped at X:%.2f Y:%.2f Z:%.2f", st.X, st.Y, st.Z)
			return nil
		})
	},
}

var tempCmd = &cobra.Command{
	Use:       "temp nozzle|bed <celsius>",
	Short:     "set a target temperature, 0 turns the heater off",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"nozzle", "bed"},
	RunE: func(cmd *cobra.Command, args []string) error {
		celsius, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		return withController(cmd, func(c *adv3.Controller) error {
			switch args[0] {
			case "nozzle":
				return c.SetNozzleTemp(celsius)
			case "bed":
				return c.SetBedTemp(celsius)
			default:
				return fmt.Errorf("unknown heater %q", args[0])
			}
		})
	},
}

var moveCmd = &cobra.Command{
	Use:   "move x|y|z|e|xy <position>... [feed]",
	Short: "move an axis to an absolute position",
	Example: `  adv3 move xy 0 0 3000
  adv3 move z 10
  adv3 move e 20 200`,
	Args: cobra.RangeArgs(2, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		axis := strings.ToLower(args[0])
		want := 1
		if axis == "xy" {
			want = 2
		}
		nums, feed, err := moveArgs(args[1:], want, axis)
		if err != nil {
			return err
		}
		return withController(cmd, func(c *adv3.Controller) error {
			switch axis {
			case "x":
				return c.MoveX(nums[0], feed)
			case "y":
				return c.MoveY(nums[0], feed)
			case "z":
				return c.MoveZ(nums[0], feed)
			case "e":
				return c.MoveE(nums[0], feed)
			case "xy":
				return c.MoveXY(nums[0], nums[1], feed)
			}
			return fmt.Errorf("unknown axis %q", axis)
		})
	},
}

// moveArgs parses want positions and an optional feed rate.
func moveArgs(args []string, want int, axis string) ([]float64, uint, error) {
	if len(args) < want || len(args) > want+1 {
		return nil, 0, fmt.Errorf("move %s takes %d position(s) and an optional feed", axis, want)
	}
	var nums []float64
	for _, a := range args[:want] {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, 0, err
		}
		nums = append(nums, v)
	}
	feed := uint(3000)
	switch axis {
	case "z":
		feed = 600
	case "e":
		feed = 200
	}
	if len(args) > want {
		f, err := strconv.ParseUint(args[want], 10, 32)
		if err != nil {
			return nil, 0, err
		}
		feed = uint(f)
	}
	return nums, feed, nil
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "show printer identification",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(c *adv3.Controller) error {
			mi, err := c.MachineInfo()
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", label("type:    "), mi.Type)
			fmt.Printf("%s %s\n", label("name:    "), mi.Name)
			fmt.Printf("%s %s\n", label("firmware:"), mi.Firmware)
			fmt.Printf("%s %s\n", label("serial:  "), mi.SerialNumber)
			fmt.Printf("%s %d\n", label("tools:   "), mi.ToolCount)
			fmt.Printf("%s %dx%dx%d mm\n", label("volume:  "), mi.X, mi.Y, mi.Z)
			fmt.Printf("%s %s\n", label("transfer:"), c.Session().Variant())
			return nil
		})
	},
}

func init() {
	estopCmd.Flags().BoolP(flagYes, "y", false, "don't ask for confirmation")
	rootCmd.AddCommand(ledCmd, stopCmd, estopCmd, tempCmd, moveCmd, infoCmd)
}
