package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/specchain/internal/metrics"
	"github.com/HendryAvila/specchain/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the MCP server on stdin/stdout. Logs go to stderr.

With --metrics-addr, Prometheus metrics are served at /metrics on that
address while the MCP server runs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			metricsAddr := a.v.GetString("metrics-addr")
			var m *metrics.Metrics
			if metricsAddr != "" {
				m = metrics.New()
			}

			s, cleanup := server.New(a.options(m))
			defer cleanup()

			if m != nil {
				stop := a.serveMetrics(metricsAddr, m)
				defer stop()
			}

			a.logger.Info("serving MCP on stdio", "version", server.Version)
			if err := mcpserver.ServeStdio(s); err != nil {
				return fmt.Errorf("serving stdio: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9464")
	_ = a.v.BindPFlag("metrics-addr", cmd.Flags().Lookup("metrics-addr"))
	return cmd
}

// serveMetrics starts the metrics endpoint and returns its shutdown func.
func (a *app) serveMetrics(addr string, m *metrics.Metrics) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
