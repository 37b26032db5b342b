package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facetrack/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the device console",
	Long: `Start the facetrack device console.
The console exposes a local HTTP API for inspecting the roster, enrolling
and deleting persons, running recognition on uploaded frames and steering
the tracking target.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	engine, cfg, err := buildEngine()
	if err != nil {
		return err
	}

	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	status := engine.Status()
	fmt.Printf("Engine ready: %d of %d persons enrolled (%s backend)\n",
		status.RegisteredCount, status.MaxPersons, status.Backend)

	server := web.NewServer(cfg, engine)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting device console on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
