package cmd

import (
	"fmt"
	"net"
	"strconv"

	"github.com/roffe/adv3/pkg/sim"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "run a simulated printer",
	Long: `Run a simulated Adventurer 3 control port for trying the other commands
without a printer, ie. adv3 simulate & adv3 -H 127.0.0.1 status`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		listen, _ := f.GetString("listen")
		port, _ := cmd.Flags().GetInt(flagPort)
		stream, _ := f.GetBool("stream")
		refuse, _ := f.GetBool("refuse")
		firmware, _ := f.GetString("firmware")

		p := sim.New(sim.Config{
			Stream:   stream,
			Refuse:   refuse,
			Firmware: firmware,
			Logger:   log,
		})
		addr, err := p.Listen(net.JoinHostPort(listen, strconv.Itoa(port)))
		if err != nil {
			return err
		}
		fmt.Printf("simulated printer listening on %s\n", addr)
		return p.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	f := simulateCmd.Flags()
	f.String("listen", "127.0.0.1", "listen address")
	f.Bool("stream", false, "behave like V2.1 firmware")
	f.Bool("refuse", false, "refuse control sessions")
	f.String("firmware", "", "firmware version to report")
}
