package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/showcase/internal/content"
	"github.com/mesh-intelligence/showcase/internal/metrics"
)

const metricsShutdownTimeout = 5 * time.Second

func newWatchCmd(a *app) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch <profile|collection>",
		Short: "Print every rendered update until interrupted",
		Long: `Watch subscribes to the profile or to a collection and prints the rendered
value each time it changes, including changes written by other processes to
the same data directory. With --metrics-addr the prometheus metrics are
served on /metrics while watching.

Example:
  showcase watch profile
  showcase watch projects --json --metrics-addr :9090`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ws, err := a.open(true)
			if err != nil {
				return err
			}
			defer ws.Close()

			if metricsAddr != "" {
				metrics.RegisterMetrics()
				shutdown := serveMetrics(a, metricsAddr)
				defer shutdown()
			}

			p := &printer{w: out(cmd), json: a.flags.jsonMode}
			var h *content.Handle
			if args[0] == "profile" {
				h, err = ws.content.WatchProfile(p.profile)
			} else {
				h, err = ws.content.WatchCollection(args[0], p.collection)
			}
			if err != nil {
				return err
			}
			defer h.Close()

			a.log.Info().Str("target", args[0]).Msg("watching")
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	return cmd
}

// serveMetrics starts an HTTP server exposing /metrics and returns a
// function that shuts it down.
func serveMetrics(a *app, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	a.log.Info().Str("addr", addr).Msg("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.log.Warn().Err(err).Msg("metrics server shutdown")
		}
	}
}

// printer writes rendered updates. Loading states are not printed.
type printer struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

func (p *printer) profile(v content.ProfileView) {
	if v.Loading {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		p.encode(toProfileJSON(v))
		return
	}
	writeProfile(p.w, v)
	fmt.Fprintln(p.w)
}

func (p *printer) collection(v content.CollectionView) {
	if v.Loading {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		p.encode(toCollectionJSON(v))
		return
	}
	writeCollection(p.w, v)
	fmt.Fprintln(p.w)
}

// encode writes v as one JSON line.
func (p *printer) encode(v any) {
	_ = json.NewEncoder(p.w).Encode(v)
}
