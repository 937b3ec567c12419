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

	"github.com/yaserfarook1/SentinalLens/internal/api"
	"github.com/yaserfarook1/SentinalLens/internal/store"
	"github.com/yaserfarook1/SentinalLens/pkg/config"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	var timeoutStr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the audit HTTP API",
		Long: `Start the audit API server. Runs are started with
POST /api/v1/audits and progress can be streamed from
GET /api/v1/audits/{id}/events.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if timeoutStr != "" {
				cfg.RequestTimeout, err = config.ParseDuration(timeoutStr)
				if err != nil {
					return fmt.Errorf("invalid --timeout duration: %w", err)
				}
			}
			cfg.Normalize()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.WorkspaceBaseURL, "workspace-url", "", "Workspace management API base URL")
	cmd.Flags().StringVar(&cfg.SnapshotPath, "snapshot", "", "Serve audits from a YAML workspace snapshot")
	cmd.Flags().StringVar(&cfg.Region, "region", "eastus", "Pricing region")
	cmd.Flags().StringVar(&timeoutStr, "timeout", "30s", "Per-request timeout for workspace calls")
	cmd.Flags().IntVar(&cfg.RateLimit, "rate-limit", 10, "Workspace API rate limit (requests/sec)")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 4, "Query extraction worker pool size")
	cmd.Flags().StringSliceVar(&cfg.ExcludeTables, "exclude-table", nil, "Table name or glob to exclude (repeatable)")
	cmd.Flags().IntVar(&cfg.ServerPort, "port", 8080, "Port to serve on")
	cmd.Flags().StringVar(&cfg.StorePath, "store", "./sentinellens.db", "Run history database path")

	return cmd
}

// runServe starts the audit API server
func runServe(cfg *config.Config) error {
	ws, err := buildWorkspace(cfg)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := api.New(api.Options{
		Workspace:    ws,
		Store:        st,
		Region:       cfg.Region,
		Concurrency:  cfg.Concurrency,
		LookbackDays: cfg.LookbackDays(),
		ExcludeTable: cfg.IsTableExcluded,
		Logger:       slog.Default(),
	})
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "Audit API listening on :%d (Ctrl+C to stop)\n", cfg.ServerPort)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
