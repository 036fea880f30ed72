package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed packages and their current version",
	Long:  `List prints one line per installed package: "<owner/repo> <current_version>".`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	packages, err := uc.List()
	if err != nil {
		return err
	}
	for _, p := range packages {
		fmt.Printf("%s %s\n", p.Repo, p.CurrentVersion)
	}
	return nil
}
