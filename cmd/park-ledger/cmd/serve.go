package cmd

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

	"github.com/shunichi-ikebuchi/park-ledger/pkg/httpapi"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the posting callbacks over HTTP",
	Long: `Start the HTTP server operational modules call after their own writes.

Endpoints:
  POST /hooks/payroll-periods/{id}/closed
  POST /hooks/events/{id}/registrations   {"participants": 5}
  POST /hooks/events/{id}/sponsorships    {"sponsor_name": "...", "amount": "1500.00"}
  GET  /healthz

Example:
  park-ledger serve
  PARK_LEDGER_LISTEN_ADDR=127.0.0.1:9000 park-ledger serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := openApp()
	if err != nil {
		return err
	}
	defer rt.conn.Close()

	if err := rt.cfg.Validate("server.listenAddr"); err != nil {
		return err
	}

	e := rt.newEngine()
	if err := e.Ping(cmd.Context()); err != nil {
		return err
	}

	server := &http.Server{
		Addr:         rt.cfg.Server.ListenAddr,
		Handler:      httpapi.NewRouter(httpapi.NewHandler(e, slog.Default())),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting park-ledger server", "addr", server.Addr, "db_path", rt.conn.GetPath())
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	slog.Info("server stopped")
	return nil
}
