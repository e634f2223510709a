package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zoidberg-sync/zoidberg/pkg/action"
	"github.com/zoidberg-sync/zoidberg/pkg/engine"
	"github.com/zoidberg-sync/zoidberg/pkg/log"
	"github.com/zoidberg-sync/zoidberg/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "zoidbergd",
	Short: "Zoidberg - a tool for gerrit instances to interact with each other",
	Long: `Zoidberg bridges two or more gerrit instances by consuming each
server's live event stream and reacting with configurable actions:
propagate a comment to another server, mirror a branch, forward a
patch set for review.

It runs as a single long-lived daemon; sources reconnect on failure
and the configuration hot-reloads when the file changes.`,
	Version: Version,
	RunE:    runDaemon,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Zoidberg version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.Flags().StringP("config", "c", "./etc/zoidberg.yaml", "config yaml path")
	rootCmd.Flags().BoolP("verbose", "v", false, "log at debug level")
	rootCmd.Flags().String("logfile", "", "file to log to (default: stdout)")
	rootCmd.Flags().Bool("log-json", false, "output logs in JSON format")
	rootCmd.Flags().String("metrics-addr", "", "listen address for /metrics and /health (disabled when empty)")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	verbose, _ := rootCmd.Flags().GetBool("verbose")
	logJSON, _ := rootCmd.Flags().GetBool("log-json")

	var output io.Writer
	if logfile, _ := rootCmd.Flags().GetString("logfile"); logfile != "" {
		f, err := os.OpenFile(logfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot open logfile: %v\n", err)
			os.Exit(1)
		}
		output = f
	}

	log.Init(log.Config{
		Verbose: verbose,
		JSON:    logJSON,
		Output:  output,
	})
}

func runDaemon(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	metrics.SetVersion(Version)

	registry := action.NewDefaultRegistry()

	eng, err := engine.New(configPath, registry)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.Handle("/health", metrics.HealthHandler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Logger.Error().Err(err).Msg("Metrics server error")
			}
		}()
		log.Logger.Info().Str("addr", metricsAddr).Msg("Metrics endpoint started")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Logger.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
		eng.Stop()
	}()

	eng.Run()
	return nil
}
