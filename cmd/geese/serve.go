package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lao-tseu-is-alive/go-flocking-geese/internal/bridge"
	"github.com/lao-tseu-is-alive/go-flocking-geese/internal/metrics"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/flock"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/pixbuf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	golog "github.com/tochemey/goakt/v3/log"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the flock headless, driven over WebSocket",
		Long: `Run the flock headless. The flock is rendered offscreen and driven
with text commands over WebSocket.

Endpoints:
  /ws        command protocol, one command line per text frame
  /metrics   Prometheus metrics
  /healthz   liveness`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
				rt.cfg.ListenAddr = listen
			}
			renderFPS, _ := cmd.Flags().GetInt("render-fps")

			buffer := pixbuf.New(int(rt.cfg.WorldWidth), int(rt.cfg.WorldHeight))
			if err := rt.flock.SetPixelBuffer(buffer); err != nil {
				return err
			}
			buffer.Release()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			if err := metrics.Register(reg, rt.flock); err != nil {
				return fmt.Errorf("failed to register metrics: %w", err)
			}

			mux := http.NewServeMux()
			mux.Handle("/ws", bridge.NewServer(rt.client, rt.logger, rt.cfg.InfoInterval()))
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				if !rt.flock.IsSimulationRunning() {
					http.Error(w, "simulation stopped", http.StatusServiceUnavailable)
					return
				}
				fmt.Fprintln(w, "ok")
			})

			go renderLoop(ctx, rt.flock, renderFPS, rt.logger)

			srv := &http.Server{
				Addr:              rt.cfg.ListenAddr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				rt.logger.Infof("serving on %s", rt.cfg.ListenAddr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
			case <-ctx.Done():
				rt.logger.Info("shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("listen", "", "Listen address, overrides listenAddr")
	cmd.Flags().Int("render-fps", 60, "Offscreen renders per second")
	return cmd
}

// renderLoop is the headless render consumer. It keeps the throttled
// simulation moving at the given rate.
func renderLoop(ctx context.Context, f *flock.Flock, fps int, logger golog.Logger) {
	if fps <= 0 {
		fps = 60
	}
	t := time.NewTicker(time.Second / time.Duration(fps))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := f.Render(); err != nil {
				logger.Debugf("render skipped: %v", err)
			}
		}
	}
}
