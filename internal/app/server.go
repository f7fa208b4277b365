package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// Start serves http in the background. The returned channel is closed when a
// termination signal arrives.
func (a *App) Start() <-chan struct{} {
	terminate := make(chan struct{})

	go func() {
		slog.Info("http server listening", "address", a.httpServer.Addr)

		if err := a.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen and serve http server", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

		got := <-sig
		signal.Stop(sig)

		slog.Info("shutdown requested", "signal", got.String())
		close(terminate)
	}()

	return terminate
}

// Stop drains in-flight uploads before cancelling the background loops, so
// progress of an upload that finishes during shutdown is still delivered.
func (a *App) Stop(ctx context.Context) {
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to drain http server", "error", err)
		}
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.goroutine != nil {
		slog.InfoContext(ctx, "waiting for background loops to finish")
		if err := a.goroutine.Wait(); err != nil {
			slog.ErrorContext(ctx, "background loop failed", "error", err)
		}
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resources", "name", c.name, "error", err)
		}
	}

	slog.InfoContext(ctx, "application gracefully shutdown")
}
