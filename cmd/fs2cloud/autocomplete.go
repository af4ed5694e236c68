package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var autocompleteShell string

var autocompleteCmd = &cobra.Command{
	Use:   "autocomplete",
	Short: "Generate a shell completion script",
	RunE:  runAutocomplete,
}

func init() {
	autocompleteCmd.Flags().StringVar(&autocompleteShell, "shell", "bash", "shell to generate a completion script for (bash, zsh, fish, powershell)")
}

func runAutocomplete(cmd *cobra.Command, args []string) error {
	switch autocompleteShell {
	case "bash":
		return rootCmd.GenBashCompletion(os.Stdout)
	case "zsh":
		return rootCmd.GenZshCompletion(os.Stdout)
	case "fish":
		return rootCmd.GenFishCompletion(os.Stdout, true)
	case "powershell":
		return rootCmd.GenPowerShellCompletion(os.Stdout)
	default:
		return fmt.Errorf("config error: unknown shell %q", autocompleteShell)
	}
}
