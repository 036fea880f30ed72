package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaifeng/ghri-go/pkg/provider"
)

var unlinkAll bool

var unlinkCmd = &cobra.Command{
	Use:   "unlink <linkspec> [<dest>]",
	Short: "Remove one or every symlink recorded for a package",
	Long: `Unlink removes the symlink matching linkspec/dest (or, with --all,
every recorded link for linkspec's package), dropping the corresponding
rule once its symlink is gone.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUnlink,
}

func init() {
	rootCmd.AddCommand(unlinkCmd)
	unlinkCmd.Flags().BoolVar(&unlinkAll, "all", false, "Remove every recorded link, downgrading unmanaged-target errors to warnings")
}

func runUnlink(cmd *cobra.Command, args []string) error {
	spec, err := provider.ParseLinkSpec(args[0])
	if err != nil {
		return err
	}
	var dest string
	if len(args) == 2 {
		dest = args[1]
	}

	summary, err := uc.Unlink(spec, dest, unlinkAll)
	for _, w := range summary.Warnings {
		fmt.Println("warning:", w)
	}
	if err != nil {
		return err
	}
	fmt.Printf("removed %d link(s)\n", summary.Removed)
	return nil
}
