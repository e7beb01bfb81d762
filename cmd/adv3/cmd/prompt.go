package cmd

import (
	"github.com/manifoldco/promptui"
)

func yesNo(label string) bool {
	prompt := promptui.Select{
		Label:    label + " [Yes/No]",
		HideHelp: true,
		Items:    []string{"Yes", "No"},
	}
	_, result, err := prompt.Run()
	if err != nil {
		log.Debugf("prompt failed: %v", err)
		return false
	}
	return result == "Yes"
}
