package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/roffe/adv3/pkg/translate"
	"github.com/spf13/cobra"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "show or save the effective translation parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadParams(cmd)
		if err != nil {
			return err
		}
		if out, _ := cmd.Flags().GetString("write"); out != "" {
			if err := translate.SaveParameters(out, p); err != nil {
				return err
			}
			log.Infof("saved parameters to %s", out)
			return nil
		}
		b, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(paramsCmd)
	addParamFlags(paramsCmd)
	paramsCmd.Flags().StringP("write", "w", "", "save to file")
}
