package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/justin-molloy/mediawatch/api"
	"github.com/justin-molloy/mediawatch/config"
	"github.com/justin-molloy/mediawatch/engine"
	"github.com/justin-molloy/mediawatch/store"
)

// Application name used for the Windows service, and for defining where the
// config file should be (if installed using installer).
const AppName = "MediaWatch"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mediawatch",
		Short:         "Watch media directories and queue changed files for analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := config.AddFlags(cmd)

	cmd.AddCommand(newRunCommand(flags))
	cmd.AddCommand(newRootsCommand(flags))
	cmd.AddCommand(newWalkCommand(flags))
	cmd.AddCommand(newConfigCommand(flags))

	return cmd
}

// loadConfig finds, reads and validates the config file. Command line flags
// may change the config.
func loadConfig(flags *config.FlagOptions) (*config.ConfigData, error) {
	configFile, err := config.GetConfigFile(AppName, flags.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("can't find where the config file lives: %w", err)
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	config.ApplyFlags(&cfg, *flags)

	if err := config.ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func newRunCommand(flags *config.FlagOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start watching and serve the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
}

func run(cfg *config.ConfigData) error {

	// set up logging once we've determined where we should log to. If we
	// can't set up logging, there's a bigger problem that needs to be
	// resolved.

	logFile, err := config.SetupLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	eng, err := engine.New(cfg, engine.Deps{Store: st})
	if err != nil {
		return err
	}

	server := api.NewServer(cfg.Listen, eng)

	// Run the service if called from Windows Service, or run standalone if
	// not. Both options use the same engine once started.

	handled, err := runService(cfg, eng, server)
	if handled || err != nil {
		return err
	}

	slog.Info("Running as standalone app")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		eng.Close()
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("REST API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Program terminated by user")
	case err = <-serveErr:
		slog.Error("HTTP server stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		slog.Warn("HTTP server shutdown", "error", serr)
	}
	eng.Close()

	return err
}
