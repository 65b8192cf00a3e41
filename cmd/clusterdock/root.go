package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/clusterdock/clusterdock/internal/app"
	"github.com/clusterdock/clusterdock/internal/config"
	"github.com/clusterdock/clusterdock/internal/logger"
	"github.com/clusterdock/clusterdock/internal/version"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type contextKey string

const (
	configKey = contextKey("config")
	loggerKey = contextKey("logger")
)

var (
	configFile string
	verbose    bool
)

// newApplication is replaced in tests.
var newApplication = func(cfg *config.Config, logger zerolog.Logger) (application, error) {
	return app.New(cfg, logger)
}

// exitCodeError carries a non-zero exit status that needs no message.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var rootCmd = &cobra.Command{
	Use:           version.PackageName,
	Short:         "Build and run multi-node clusters in Docker containers",
	Long:          "A tool to bring up clusters of containers described by topology directories, and to inspect and tear them down.",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Commands that parse their own flags call setup once they have.
		if cmd.DisableFlagParsing {
			return nil
		}
		return setup(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().String("log-level", "INFO", "set log level (e.g. INFO, DEBUG, WARN)")
	viper.BindPFlag("log.log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Enable automatic environment variable binding.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// setup loads configuration and the logger into the command's context.
func setup(cmd *cobra.Command) error {
	if err := config.InitConfig(configFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logInstance := logger.SetupLogger(&cfg.Logging, verbose)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logInstance)
	cmd.SetContext(ctx)
	return nil
}

func fromContext(cmd *cobra.Command) (*config.Config, zerolog.Logger) {
	cfg := cmd.Context().Value(configKey).(*config.Config)
	logInstance := cmd.Context().Value(loggerKey).(zerolog.Logger)
	return cfg, logInstance
}

// withApplication creates the application and runs fn with a context that is
// cancelled on SIGINT or SIGTERM.
func withApplication(cmd *cobra.Command, fn func(ctx context.Context, a application) error) error {
	cfg, logInstance := fromContext(cmd)

	// Create the application.
	a, err := newApplication(cfg, logInstance)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logInstance.Warn().Err(err).Msg("Failed to close application")
		}
	}()

	// Create a context with cancellation for graceful shutdown.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Listen for OS signals.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logInstance.Info().Msgf("Received signal: %v", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return fn(ctx, a)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprintf(os.Stderr, "Execution error: %v\n", err)
		os.Exit(1)
	}
}
