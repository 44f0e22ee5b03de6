package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/scamradar/internal/control"
)

var apiPort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection API with health and metrics endpoints",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().IntVar(&apiPort, "api-port", 0, "detection API port (overrides server.api_port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := setup()
	if err != nil {
		os.Exit(1)
	}
	if apiPort > 0 {
		cfg.Server.APIPort = apiPort
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := control.NewApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize detector", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start detector", "error", err)
		os.Exit(1)
	}

	slog.Info("Detector started", "config", cfgPath, "port", cfg.Server.Port, "api_port", cfg.Server.APIPort)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
