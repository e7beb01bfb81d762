package cmd

import (
	"strings"

	"github.com/roffe/adv3"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <gcode>...",
	Short: "send g-code commands and print the replies",
	Example: `  adv3 send M115
  adv3 send "M104 S200 T0" M105`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(c *adv3.Controller) error {
			for _, gc := range args {
				reply, err := c.Send(gc)
				if err != nil {
					return err
				}
				printReply(reply)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func trimReply(reply string) string {
	return strings.TrimSpace(strings.ReplaceAll(reply, "\r\n", "\n"))
}
