// Package cmd wires the core's use cases into a cobra CLI, the
// composition root for the whole process: flag parsing, config-file
// defaults, provider registration, and a signal-driven cleanup/exit-code
// contract: persistent flags plus global config resolution, generalized
// to this domain's provider registry and install root.
package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/task"
	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"

	"github.com/chaifeng/ghri-go/pkg/cleanup"
	"github.com/chaifeng/ghri-go/pkg/config"
	"github.com/chaifeng/ghri-go/pkg/download"
	"github.com/chaifeng/ghri-go/pkg/extract"
	"github.com/chaifeng/ghri-go/pkg/ghrierr"
	"github.com/chaifeng/ghri-go/pkg/host"
	"github.com/chaifeng/ghri-go/pkg/install"
	"github.com/chaifeng/ghri-go/pkg/provider"
	"github.com/chaifeng/ghri-go/pkg/provider/github"
	"github.com/chaifeng/ghri-go/pkg/provider/gitlab"
	"github.com/chaifeng/ghri-go/pkg/repository"
	"github.com/chaifeng/ghri-go/pkg/symlink"
	"github.com/chaifeng/ghri-go/pkg/usecase"
)

const appName = "ghri"

var (
	installRootFlag  string
	providerKindFlag string
	cacheDirFlag     string
	configFileFlag   string
	verbose          bool

	uc   *usecase.UseCase
	real = host.NewReal()
)

var rootCmd = &cobra.Command{
	Use:          appName,
	Short:        "A per-user package manager for GitHub-class release artifacts",
	Long:         `ghri installs, upgrades, removes, and links release artifacts published by GitHub-class code-hosting APIs, keeping multiple versions side-by-side under a single install root with a "current" pointer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		clicky.Flags.UseFlags()
		if verbose {
			logger.StandardLogger().SetMinLogLevel(logger.Debug)
		}
		logger.Debugf("%s starting, args=%v", appName, args)

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		root := resolveInstallRoot(cmd, cfg)
		kind, err := resolveProviderKind(cmd, cfg)
		if err != nil {
			return ghrierr.New(ghrierr.InvalidInput, "resolve provider kind", err)
		}

		uc = buildUseCase(root, kind)
		return nil
	},
}

// Execute runs the command tree and returns the process exit code,
// translating use-case errors through ghrierr.ExitCode and an interrupt
// (caught by runInterruptible, set up per long-running command) into the
// conventional 130.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := interruptedExitCode(err); ok {
			return code
		}
		return ghrierr.ExitCode(err)
	}
	return 0
}

func loadConfig() (*config.Config, error) {
	path := configFileFlag
	if path == "" {
		home, err := real.UserHomeDir()
		if err != nil {
			home = real.Getenv("HOME")
		}
		path = config.Path(real.Getenv, home)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, ghrierr.New(ghrierr.InvalidInput, "load config", err)
	}
	return cfg, nil
}

// resolveInstallRoot layers flag > GHRI_INSTALL_ROOT env > config file >
// the privileged/unprivileged platform default (flags and env vars are
// read here, the file layer already resolved into cfg by loadConfig).
func resolveInstallRoot(cmd *cobra.Command, cfg *config.Config) string {
	if cmd.Flags().Changed("install-root") {
		return installRootFlag
	}
	if v := real.Getenv("GHRI_INSTALL_ROOT"); v != "" {
		return v
	}
	if cfg.InstallRoot != "" {
		return cfg.InstallRoot
	}
	return defaultInstallRoot()
}

// defaultInstallRoot picks the platform install root: privileged gets a
// shared system location, unprivileged gets a dotdir under the user's
// home. host.Host.Geteuid is documented as meaningless
// on Windows, so the privileged branch is skipped there entirely rather
// than risk treating every Windows process as privileged; Windows always
// gets the unprivileged per-user default.
func defaultInstallRoot() string {
	if runtime.GOOS != "windows" && real.Geteuid() == 0 {
		switch runtime.GOOS {
		case "darwin":
			return filepath.Join("/opt", appName)
		default:
			return filepath.Join("/usr/local", appName)
		}
	}
	home, err := real.UserHomeDir()
	if err != nil {
		home = real.Getenv("HOME")
	}
	return filepath.Join(home, "."+appName)
}

func resolveProviderKind(cmd *cobra.Command, cfg *config.Config) (provider.Kind, error) {
	if cmd.Flags().Changed("provider") {
		return provider.ParseKind(providerKindFlag)
	}
	if v := real.Getenv("GHRI_PROVIDER_KIND"); v != "" {
		return provider.ParseKind(v)
	}
	if k, err := cfg.ResolveProviderKind(); err != nil {
		return "", err
	} else if k != nil {
		return *k, nil
	}
	return provider.GitHub, nil
}

// buildUseCase wires every collaborator for one process invocation: the
// provider registry (GitHub and GitLab always registered), the package repository
// rooted at root, the symlink manager, and the install engine backed by
// the real download/extract adapters.
func buildUseCase(root string, defaultKind provider.Kind) *usecase.UseCase {
	registry := provider.NewRegistryWithDefault(defaultKind)
	registry.Register(github.New())
	registry.Register(gitlab.New(real.Getenv("GITLAB_TOKEN")))
	logGitHubToken()

	repo := repository.New(real, root)
	symlinks := symlink.New(real)

	dl := download.Adapter{CacheDir: cacheDirFlag}
	ex := extract.HostExtractor{Host: real}
	engine := install.New(real, dl, ex)

	return usecase.New(real, repo, registry, symlinks, engine)
}

// attachTask points uc's download/extract collaborators at t so downloads
// and extractions triggered during this command log onto it, instead of
// the untracked nil-task collaborators buildUseCase constructs.
func attachTask(t *task.Task) {
	uc.Engine.Downloader = download.Adapter{CacheDir: cacheDirFlag, Task: t}
	uc.Engine.Extractor = extract.HostExtractor{Host: real, Task: t}
}

// logGitHubToken logs GITHUB_TOKEN's presence without exposing it: a
// token of length >= 12 is logged masked as <first8>*********<last4>.
func logGitHubToken() {
	token := real.Getenv("GITHUB_TOKEN")
	if token == "" {
		return
	}
	if len(token) >= 12 {
		logger.Debugf("GITHUB_TOKEN set: %s*********%s", token[:8], token[len(token)-4:])
	} else {
		logger.Debugf("GITHUB_TOKEN set (too short to mask safely, not logging value)")
	}
}

func init() {
	clicky.BindAllFlags(rootCmd.PersistentFlags(), "tasks", "!format")

	rootCmd.PersistentFlags().StringVar(&installRootFlag, "install-root", "", "Directory under which packages are installed (default: platform-specific)")
	rootCmd.PersistentFlags().StringVar(&providerKindFlag, "provider", "", "Default provider kind for unqualified specs (github, gitlab, gitee)")
	rootCmd.PersistentFlags().StringVar(&cacheDirFlag, "cache-dir", "", "Directory for a download cache (empty disables it)")
	rootCmd.PersistentFlags().StringVarP(&configFileFlag, "config", "c", "", "Path to config.yaml (default: ~/.config/ghri/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")
}

// interruptedExitCode reports whether err originated from an interrupt
// signal caught by runInterruptible, distinguishing it from ghrierr's
// ordinary error-kind mapping.
func interruptedExitCode(err error) (int, bool) {
	if errors.Is(err, errInterrupted) {
		return 130, true
	}
	return 0, false
}

var errInterrupted = errors.New("interrupted")

// runInterruptible runs fn to completion unless a SIGINT/SIGTERM arrives
// first, in which case it removes every path cc has accumulated and
// returns errInterrupted so Execute maps it to exit code 130.
func runInterruptible(cc *cleanup.Context, fn func() error) error {
	sigCh := make(chan os.Signal, 1)
	stop := real.NotifyInterrupt(sigCh)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case <-sigCh:
		cc.RemoveAll()
		return errInterrupted
	case err := <-done:
		return err
	}
}
