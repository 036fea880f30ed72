package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chaifeng/ghri-go/pkg/provider"
)

var linkCmd = &cobra.Command{
	Use:   "link <linkspec> <dest>",
	Short: "Create or update a symlink into an installed package",
	Long: `Link points dest at linkspec's resolved target: the version's sole
entry, the whole version directory, or an explicit in-version path
("owner/repo:path"). The rule is recorded so future installs keep the
link current.`,
	Args: cobra.ExactArgs(2),
	RunE: runLink,
}

func init() {
	rootCmd.AddCommand(linkCmd)
}

func runLink(cmd *cobra.Command, args []string) error {
	spec, err := provider.ParseLinkSpec(args[0])
	if err != nil {
		return err
	}
	return uc.Link(spec, args[1])
}
