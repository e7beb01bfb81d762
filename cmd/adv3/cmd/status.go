package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/roffe/adv3"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "show printer status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(c *adv3.Controller) error {
			writeStatus(os.Stdout, c.Status())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

var (
	label = color.New(color.FgCyan).SprintFunc()
	good  = color.New(color.FgGreen).SprintFunc()
	warn  = color.New(color.FgYellow).SprintFunc()
	bad   = color.New(color.FgRed).SprintFunc()
)

func writeStatus(w io.Writer, st adv3.DeviceStatus) {
	state := fmt.Sprint(st.State)
	switch st.State {
	case adv3.StateReady:
		state = good(state)
	case adv3.StateBuilding, adv3.StateTransfer:
		state = warn(state)
	default:
		state = bad(state)
	}
	fmt.Fprintf(w, "%s %s\n", label("state:   "), state)
	fmt.Fprintf(w, "%s %s\n", label("nozzle:  "), temp(st.NozzleTemp, st.NozzleTarget))
	fmt.Fprintf(w, "%s %s\n", label("bed:     "), temp(st.BedTemp, st.BedTarget))
	if st.ProgressMax > 0 {
		fmt.Fprintf(w, "%s %d/%d bytes (%d%%)\n", label("job:     "), st.Progress, st.ProgressMax, st.Progress*100/st.ProgressMax)
	}
	fmt.Fprintf(w, "%s X:%.2f Y:%.2f Z:%.2f E:%.2f\n", label("position:"), st.X, st.Y, st.Z, st.E)
	fmt.Fprintf(w, "%s X:%s Y:%s Z:%s\n", label("endstops:"), endstop(st.LimitX), endstop(st.LimitY), endstop(st.LimitZ))
}

func temp(current, target int) string {
	s := fmt.Sprintf("%d/%d°C", current, target)
	if target > 0 && current < target-2 {
		return warn(s)
	}
	return s
}

func endstop(hit bool) string {
	if hit {
		return bad("hit")
	}
	return "open"
}
