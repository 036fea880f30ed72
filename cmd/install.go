package cmd

import (
	"github.com/flanksource/clicky/task"
	flanksourceContext "github.com/flanksource/commons/context"
	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"

	"github.com/chaifeng/ghri-go/pkg/cleanup"
	"github.com/chaifeng/ghri-go/pkg/provider"
	"github.com/chaifeng/ghri-go/pkg/usecase"
)

var (
	installFilters []string
	installPre     bool
	installYes     bool
	installPrune   bool
)

var installCmd = &cobra.Command{
	Use:   "install <spec>...",
	Short: "Install one or more packages",
	Long: `Install installs each owner/repo[@version] spec, resolving the latest
stable release when no version is given.

Examples:
  ghri install junegunn/fzf
  ghri install cli/cli@v2.40.0
  ghri install sharkdp/fd --filter '*linux*amd64*' --filter '*.tar.gz'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
	installCmd.Flags().StringArrayVar(&installFilters, "filter", nil, "Asset name glob to keep (repeatable, OR logic)")
	installCmd.Flags().BoolVar(&installPre, "pre", false, "Allow prerelease versions when no version is given")
	installCmd.Flags().BoolVar(&installYes, "yes", false, "Reserved for future confirmation prompts")
	installCmd.Flags().BoolVar(&installPrune, "prune", false, "Remove every other installed version after a successful install")
}

func runInstall(cmd *cobra.Command, args []string) error {
	originalArgs := append([]string{"install"}, args...)

	var firstErr error
	task.StartTask("install", func(_ flanksourceContext.Context, t *task.Task) (interface{}, error) {
		attachTask(t)
		cc := cleanup.New(uc.Host)
		for _, arg := range args {
			spec, err := provider.ParsePackageSpec(arg)
			if err != nil {
				logger.Warnf("install: skipping %q: %v", arg, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}

			opts := usecase.InstallOptions{
				Filters:      installFilters,
				Pre:          installPre,
				Yes:          installYes,
				Prune:        installPrune,
				OriginalArgs: originalArgs,
				Cleanup:      cc,
			}
			err = runInterruptible(cc, func() error {
				return uc.Install(cmd.Context(), spec, opts)
			})
			if err != nil {
				t.Errorf("%s: %v", spec, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			t.Infof("installed %s", spec)
		}
		return nil, firstErr
	})
	return firstErr
}
