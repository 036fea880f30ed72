package cmd

import (
	"github.com/spf13/cobra"
)

var pruneYes bool

var pruneCmd = &cobra.Command{
	Use:   "prune [<spec>...]",
	Short: "Remove every installed version other than current",
	Long: `Prune drops every installed version of the given packages (every
installed package if none are given) except whichever version "current"
points to.`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().BoolVar(&pruneYes, "yes", false, "Skip the confirmation prompt")
}

func runPrune(cmd *cobra.Command, args []string) error {
	repos, err := parseRepoArgs(args)
	if err != nil {
		return err
	}

	if !pruneYes {
		target := "all installed packages"
		if len(repos) > 0 {
			target = reposLabel(repos)
		}
		if !confirm("Prune non-current versions of " + target + "?") {
			return nil
		}
	}

	return uc.Prune(cmd.Context(), repos, pruneYes)
}
