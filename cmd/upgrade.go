package cmd

import (
	"github.com/flanksource/clicky/task"
	flanksourceContext "github.com/flanksource/commons/context"
	"github.com/spf13/cobra"

	"github.com/chaifeng/ghri-go/pkg/provider"
)

var (
	upgradePre bool
	upgradeYes bool
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [<spec>...]",
	Short: "Upgrade installed packages to their latest release",
	Long: `Upgrade re-fetches metadata for the given packages (every installed
package if none are given) and installs the latest release when it differs
from the current version.`,
	RunE: runUpgrade,
}

func init() {
	rootCmd.AddCommand(upgradeCmd)
	upgradeCmd.Flags().BoolVar(&upgradePre, "pre", false, "Allow prerelease versions")
	upgradeCmd.Flags().BoolVar(&upgradeYes, "yes", false, "Skip the confirmation prompt")
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	repos, err := parseRepoArgs(args)
	if err != nil {
		return err
	}

	if !upgradeYes {
		target := "all installed packages"
		if len(repos) > 0 {
			target = reposLabel(repos)
		}
		if !confirm("Upgrade " + target + "?") {
			return nil
		}
	}

	var upgradeErr error
	task.StartTask("upgrade", func(_ flanksourceContext.Context, t *task.Task) (interface{}, error) {
		attachTask(t)
		upgradeErr = uc.Upgrade(cmd.Context(), repos, upgradePre, upgradeYes)
		if upgradeErr != nil {
			t.Errorf("upgrade: %v", upgradeErr)
		} else {
			t.Infof("upgrade complete")
		}
		return nil, upgradeErr
	})
	return upgradeErr
}

func parseRepoArgs(args []string) ([]provider.RepoId, error) {
	repos := make([]provider.RepoId, 0, len(args))
	for _, a := range args {
		r, err := provider.ParseRepoId(a)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, nil
}

func reposLabel(repos []provider.RepoId) string {
	out := ""
	for i, r := range repos {
		if i > 0 {
			out += ", "
		}
		out += r.String()
	}
	return out
}
