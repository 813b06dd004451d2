package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/kinboard/kinboard/auth"
	"github.com/kinboard/kinboard/client"
	"github.com/kinboard/kinboard/internal/app"
	"github.com/kinboard/kinboard/internal/config"
)

// Version is set at build time.
var Version = "dev"

var (
	cfg    config.Config
	logger *slog.Logger

	apiURL           string
	dataDir          string
	logLevel         string
	biometricOutcome string
)

var rootCmd = &cobra.Command{
	Use:   "kinboard",
	Short: "Kinboard is the family calendar panel client",
	Long: `A command line client for the Kinboard family calendar panel. It keeps
the session between runs, supports biometric unlock and manages cards.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("api-url") {
			loaded.APIURL = apiURL
		}
		if cmd.Flags().Changed("data-dir") {
			loaded.DataDir = dataDir
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		l, err := loaded.NewLogger(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		cfg, logger = loaded, l
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the CLI. Secrets held in memguard are purged on exit and on
// interrupt.
func Execute() {
	memguard.CatchInterrupt()
	defer memguard.Purge()
	if err := rootCmd.Execute(); err != nil {
		memguard.SafeExit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL (overrides KINBOARD_API_URL)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for local state (overrides KINBOARD_DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides KINBOARD_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&biometricOutcome, "biometric", "success", "Simulated biometric sensor result: success, cancel, fail, lockout")
}

func openApp() (*app.App, error) {
	return app.Open(cfg, app.WithLogger(logger))
}

// requireSession starts the orchestrator, answers a pending biometric
// prompt, and fails unless the result is Authenticated.
func requireSession(cmd *cobra.Command, a *app.App) error {
	if a.Auth.Start(cmd.Context()) == auth.AuthenticatingBiometric {
		if err := answerPrompt(cmd, a); err != nil {
			return err
		}
	}
	if a.Auth.State() != auth.Authenticated {
		if msg := a.Auth.Message(); msg != "" {
			return errors.New(msg)
		}
		return errors.New("not logged in: run `kinboard login`")
	}
	return nil
}

// reportAPIError turns a session expiry into the expired flow and returns a
// user-facing error.
func reportAPIError(cmd *cobra.Command, a *app.App, err error) error {
	if errors.Is(err, client.ErrSessionExpired) && a.Auth.HandleSessionExpired(cmd.Context()) {
		fmt.Fprintln(cmd.OutOrStdout(), a.Auth.Message())
		_ = a.Auth.AcknowledgeExpiry()
	}
	return errors.New(client.Message(err))
}

func closeApp(cmd *cobra.Command, a *app.App) {
	if err := a.Close(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
	}
}
