package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/primary-workspace/pulseai-hackshodh/internal/api"
	"github.com/primary-workspace/pulseai-hackshodh/internal/resilience"
	"github.com/primary-workspace/pulseai-hackshodh/internal/source"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serves sync, scoring, and job-status operations over HTTP. Source
calls run through a per-source circuit breaker so a provider that keeps
failing is rejected fast across requests instead of hammered by each one.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		src, err := initSource(ctx)
		if err != nil {
			return err
		}

		breakers := resilience.NewSourceBreakers(breakerConfig())
		coord, err := initCoordinator(st, source.WithBreaker(src, breakers.Get(cfg.Source.Kind)))
		if err != nil {
			return err
		}

		server := api.NewServer(coord, initEngine(st), st)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           server.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("source", cfg.Source.Kind),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// breakerConfig maps the server.breaker.* settings onto the circuit breaker,
// logging every state transition for the configured source.
func breakerConfig() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Server.Breaker.FailureThreshold,
		ResetTimeout:     time.Duration(cfg.Server.Breaker.ResetTimeoutSecs) * time.Second,
		OnStateChange: func(from, to resilience.CircuitState) {
			zap.L().Warn("source circuit state change",
				zap.String("source", cfg.Source.Kind),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
