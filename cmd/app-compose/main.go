package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"

	"github.com/CZERTAINLY/app-compose/internal/console"
	"github.com/CZERTAINLY/app-compose/internal/log"
	"github.com/CZERTAINLY/app-compose/internal/model"
	"github.com/CZERTAINLY/app-compose/internal/service"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("app-compose failed", "err", err)
		os.Exit(1)
	}
}

// app holds what the commands share: the viper instance bound to the
// persistent flags and the settings parsed from it.
type app struct {
	v        *viper.Viper
	settings model.Settings
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "app-compose",
		Short: "Run the services of a project and merge their output",
		Long: `app-compose (ac) starts every service declared in app-compose.yml,
prints their output prefixed by the colored service name and waits until all
of them exit. Pids are kept in .app-compose/pids next to the compose file.

Every flag can be set by an environment variable as well, for example
AC_COLOR=never or AC_STOP_TIMEOUT=30s.`,
		SilenceUsage: true,
		// main logs the error
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("file", "f", model.DefaultComposeFile, "compose file, its directory is the project root")
	flags.String("color", console.ColorAuto, "colorize service output: auto, always or never")
	flags.Bool("verbose", false, "verbose logging")
	flags.String("log-format", log.FormatJSON, "log format: json or text")
	flags.Duration("stop-timeout", service.DefaultStopTimeout, "how long stopped services may take before they are killed")

	if err := a.v.BindPFlags(flags); err != nil {
		panic(err)
	}
	a.v.SetEnvPrefix("AC")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	rootCmd.AddCommand(a.upCmd())
	rootCmd.AddCommand(a.psCmd())
	rootCmd.AddCommand(a.killCmd())
	rootCmd.AddCommand(versionCmd)
	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provides version of app-compose",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		info, ok := debug.ReadBuildInfo()
		if !ok {
			_, _ = fmt.Fprintln(out, "app-compose: version info not available")
			return
		}

		_, _ = fmt.Fprintf(out, "app-compose: %s\n", info.Main.Version)
		_, _ = fmt.Fprintf(out, "go:          %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				_, _ = fmt.Fprintf(out, "commit:      %s\n", s.Value)
			case "vcs.time":
				_, _ = fmt.Fprintf(out, "date:        %s\n", s.Value)
			case "vcs.modified":
				_, _ = fmt.Fprintf(out, "dirty:       %s\n", s.Value)
			}
		}
	},
}

func (a *app) init(cmd *cobra.Command, _ []string) error {
	if err := a.v.Unmarshal(&a.settings); err != nil {
		return fmt.Errorf("parsing settings: %w", err)
	}
	if err := a.settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	logger, err := log.New(cmd.ErrOrStderr(), a.settings.Verbose, a.settings.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	slog.Debug("app-compose run", "settings", a.settings)
	return nil
}

// loadCompose reads the compose file and returns it with the project root.
func (a *app) loadCompose(cmd *cobra.Command) (model.Compose, string, error) {
	compose, root, err := model.LoadComposeFile(a.settings.File)
	if err != nil {
		var cfgErr *model.ConfigError
		if errors.As(err, &cfgErr) {
			slog.ErrorContext(cmd.Context(), "invalid compose file", "file", a.settings.File, cfgErr.Attr("detail"))
		}
		return model.Compose{}, "", err
	}
	slog.DebugContext(cmd.Context(), "compose file loaded",
		"file", a.settings.File,
		"root", root,
		"services", compose.Names(),
	)
	return compose, root, nil
}
