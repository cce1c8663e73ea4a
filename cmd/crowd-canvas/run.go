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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/crowd-canvas/internal/canvas"
	"github.com/omochice/crowd-canvas/internal/config"
	"github.com/omochice/crowd-canvas/internal/dispatch"
	"github.com/omochice/crowd-canvas/internal/effect"
	xglog "github.com/omochice/crowd-canvas/internal/log"
	"github.com/omochice/crowd-canvas/internal/session"
	"github.com/omochice/crowd-canvas/internal/transport"
	"github.com/omochice/crowd-canvas/pkg/protocol"
)

const metricsShutdownTimeout = 5 * time.Second

func runCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the controller and apply effects until interrupted",
		Long: `Connect to the Crowd Control controller and serve effect requests until
the controller disconnects or the process receives SIGINT/SIGTERM.

Settings come from the config file (--config) and CROWD_CANVAS_* environment
variables; environment variables win.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			xglog.Configure(xglog.Config{Level: cfg.LogLevel, Version: version})

			cat, err := loadCatalog(cfg.CatalogPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runClient(ctx, cfg, cat)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml")
	return cmd
}

// runClient connects one session and serves it until the controller goes
// away or ctx is cancelled.
func runClient(ctx context.Context, cfg config.Config, cat *effect.Catalog) error {
	logger := xglog.WithComponent("app")

	board := canvas.NewMemory("rainbow01")
	board.OnChange(func(c canvas.Change) {
		logger.Debug().
			Float64("rotation", c.Rotation).
			Bool("mirror", c.Mirror).
			Str("preset", c.Preset).
			Msg("canvas changed")
	})
	exec := effect.NewExecutor(cat, board)

	var sess *session.Session
	var opts []dispatch.Option
	if cfg.ReportFinished {
		opts = append(opts, dispatch.WithFinishedReports(func(resp protocol.Response) error {
			return sess.Send(resp)
		}))
	}
	sess = session.New(dialerFor(cfg), dispatch.New(exec, opts...), session.WithChunkSize(cfg.ChunkSize))

	logger.Info().
		Str(xglog.FieldTransport, cfg.Transport).
		Str("target", cfg.URL()).
		Int("effects", cat.Len()).
		Msg("connecting to controller")
	if err := sess.Connect(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sess.Serve(gctx)
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics endpoint listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-sess.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	var ferr *protocol.FramingError
	if errors.As(err, &ferr) {
		// a truncated last message is still a disconnect
		logger.Warn().Err(err).Msg("controller closed the stream mid-message")
		return nil
	}
	return err
}

func dialerFor(cfg config.Config) transport.Dialer {
	if cfg.Transport == config.TransportWS {
		return transport.WebSocketDialer{URL: cfg.URL(), Timeout: cfg.DialTimeout}
	}
	return transport.TCPDialer{
		Address:   cfg.Address(),
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	}
}
