package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chaifeng/ghri-go/pkg/provider"
)

var removeForce bool

var removeCmd = &cobra.Command{
	Use:   "remove <spec>",
	Short: "Remove a package version, or the whole package",
	Long: `Remove deletes a single version when spec pins one ("owner/repo@version"),
refusing to remove the current version unless --force is given. Without a
version, it removes the whole package and every installed version.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
	removeCmd.Flags().BoolVar(&removeForce, "force", false, "Remove the current version too")
}

func runRemove(cmd *cobra.Command, args []string) error {
	spec, err := provider.ParsePackageSpec(args[0])
	if err != nil {
		return err
	}
	return uc.Remove(spec, removeForce)
}
