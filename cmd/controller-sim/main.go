// Command controller-sim plays the controller side of SimpleTCP for manual
// testing: it waits for crowd-canvas to connect, sends heartbeats and a
// scripted list of effects, and logs every reply.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/crowd-canvas/internal/config"
	"github.com/omochice/crowd-canvas/internal/controller"
	xglog "github.com/omochice/crowd-canvas/internal/log"
	"github.com/omochice/crowd-canvas/pkg/protocol"
)

type options struct {
	listen    string
	transport string
	heartbeat time.Duration
	gap       time.Duration
	duration  float64
	effects   []string
	logLevel  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "controller-sim",
		Short: "Fake Crowd Control controller for exercising crowd-canvas",
		Example: `  controller-sim --effects spin_canvas,nudge_canvas_cw,rainbow_paint
  controller-sim --transport ws --listen 127.0.0.1:8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			xglog.Configure(xglog.Config{Level: opts.logLevel, Service: "controller-sim"})
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return simulate(ctx, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.listen, "listen", fmt.Sprintf("%s:%d", config.DefaultHost, config.DefaultPort), "Address to listen on")
	f.StringVar(&opts.transport, "transport", config.TransportTCP, "Transport: tcp or ws")
	f.DurationVar(&opts.heartbeat, "heartbeat", 2*time.Second, "Interval between GameUpdate requests")
	f.DurationVar(&opts.gap, "gap", time.Second, "Pause between scripted effects")
	f.Float64Var(&opts.duration, "duration", 5, "Duration sent with each effect, in seconds")
	f.StringSliceVar(&opts.effects, "effects", []string{"spin_canvas"}, "Effect codes to send, in order")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level")
	return cmd
}

func simulate(ctx context.Context, opts options) error {
	logger := xglog.WithComponent("controller-sim")

	ctrl, err := controller.Listen(opts.listen, opts.transport)
	if err != nil {
		return err
	}
	defer ctrl.Close()
	logger.Info().Str("url", ctrl.URL()).Msg("waiting for client")

	peer, err := ctrl.Accept(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for resp := range peer.Responses() {
			ev := logger.Info().
				Int64(xglog.FieldRequestID, resp.ID).
				Str(xglog.FieldResponseType, resp.Type.String())
			if resp.Status != nil {
				ev = ev.Str(xglog.FieldStatus, resp.Status.String())
			}
			if resp.Duration != nil {
				ev = ev.Float64(xglog.FieldDuration, *resp.Duration)
			}
			if resp.State != nil {
				ev = ev.Int("state", *resp.State)
			}
			ev.Msg("reply")
		}
		logger.Info().Msg("client disconnected")
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(opts.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-peer.Done():
				return nil
			case <-ticker.C:
				if err := peer.Send(protocol.Request{ID: peer.NextID(), Type: protocol.RequestTypeGameUpdate}); err != nil {
					return err
				}
			}
		}
	})

	g.Go(func() error {
		for _, code := range opts.effects {
			dur := opts.duration
			req := protocol.Request{
				ID:       peer.NextID(),
				Type:     protocol.RequestTypeEffectStart,
				Code:     code,
				Duration: &dur,
			}
			if err := peer.Send(req); err != nil {
				return err
			}
			select {
			case <-gctx.Done():
				return nil
			case <-peer.Done():
				return nil
			case <-time.After(opts.gap):
			}
		}
		logger.Info().Int("count", len(opts.effects)).Msg("script finished")
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-peer.Done():
		}
		return peer.Close()
	})

	return g.Wait()
}
