package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/bgloc/internal/cliconfig"
)

const helpDescription = `
Sample device location in the background and hand every fix to a callback.

Highlights:
  - Polling, streaming or hybrid sampling with a trailing-edge rate limit.
  - The callback environment is launched once and reused for every fix.
  - Activation survives restarts; sampling resumes on boot.
  - Configure via file, env (BGLOC_*), flags, or the HTTP command API.
`

var exampleUsage = strings.TrimSpace(`
  bgloc --track ./commute.yaml --webhook-url http://localhost:9000/fix
  bgloc --config $HOME/.bgloc/config.toml --store-dsn postgres://bgloc@localhost/bgloc
  bgloc start && bgloc configure --interval 30 --mode streaming
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "bgloc",
		Short:   "Background location sampling daemon",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment overrides the file; explicit flags override both.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			logCfg := cfg
			if logCfg.WebhookToken != "" {
				logCfg.WebhookToken = "*****"
			}
			if logCfg.StoreDSN != "" {
				logCfg.StoreDSN = "*****"
			}
			log.Info().Interface("config", logCfg).Msg("configuration")

			return runDaemon(cmd.Context(), cfg)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.bgloc/config.toml)")
	root.Flags().StringVar(&cfg.Home, "home", cfg.Home, "state directory (default: $HOME/.bgloc)")
	root.Flags().StringVar(&cfg.StoreDSN, "store-dsn", cfg.StoreDSN, "postgres:// DSN for settings (default: settings.json under home)")
	root.PersistentFlags().StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "command API listen address")
	root.Flags().StringVar(&cfg.TrackFile, "track", cfg.TrackFile, "YAML track replayed as the device position")

	root.Flags().StringVar(&cfg.WebhookURL, "webhook-url", cfg.WebhookURL, "URL receiving callback events (default: log them)")
	root.Flags().StringVar(&cfg.WebhookToken, "webhook-token", cfg.WebhookToken, "bearer token for the webhook")
	root.Flags().DurationVar(&cfg.WebhookTimeout, "webhook-timeout", cfg.WebhookTimeout, "timeout per webhook attempt")
	root.Flags().IntVar(&cfg.WebhookMaxTries, "webhook-max-tries", cfg.WebhookMaxTries, "attempts per callback event")

	root.Flags().Int64Var(&cfg.CallbackHandle, "callback-handle", cfg.CallbackHandle, "register this callback handle at startup")
	root.Flags().Int64Var(&cfg.DispatcherHandle, "dispatcher-handle", cfg.DispatcherHandle, "handle of the built-in callback entrypoint")

	root.Flags().BoolVar(&cfg.ForegroundRelease, "foreground-release", cfg.ForegroundRelease, "give the keep-alive lease back while in the foreground")
	root.Flags().DurationVar(&cfg.PermissionPoll, "permission-poll", cfg.PermissionPoll, "permission polling interval (0 disables)")
	root.Flags().BoolVar(&cfg.WatchStore, "watch-store", cfg.WatchStore, "reload when the settings file changes")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(newClientCommands(&cfg.ListenAddr)...)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("bgloc")
		os.Exit(1)
	}
}
