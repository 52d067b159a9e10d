// Command gridflow-server exposes the power flow solver over HTTP.
// POST /solve takes a JSON case and returns the solved network,
// /metrics serves Prometheus series and /healthz answers liveness
// probes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/gridflow/core"
	"github.com/signalsfoundry/gridflow/internal/logging"
	"github.com/signalsfoundry/gridflow/internal/observability"
)

// Config carries everything run needs, so tests can start the server
// on an ephemeral listener.
type Config struct {
	ListenAddress string
	Defaults      core.Options
}

func main() {
	addr := flag.String("addr", ":8080", "TCP address the HTTP API listens on")
	algorithm := flag.String("algorithm", "nr", "Default AC solve kernel: nr, fdxb, fdbx, or gs")
	enforce := flag.String("enforce-qlims", "off", "Default reactive limit handling: off, all, or worst")
	recycle := flag.Bool("recycle", true, "Reuse admittance matrices across solves of one request")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg := Config{
		ListenAddress: *addr,
		Defaults: core.Options{
			Algorithm:         core.Algorithm(*algorithm),
			EnforceQLimits:    core.QLimitMode(*enforce),
			RecycleAdmittance: *recycle,
		},
	}

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(runCtx, cfg, log, lis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the HTTP API on lis until ctx is cancelled, then drains
// in-flight requests before returning.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	// Surface a bad -algorithm or -enforce-qlims at startup instead
	// of failing every request.
	if _, err := core.NewRunner(cfg.Defaults); err != nil {
		return fmt.Errorf("default options: %w", err)
	}

	collector, err := observability.NewSolverCollector(nil)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	tracingCfg := observability.TracingConfigFromEnv()
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	srv := &http.Server{
		Handler:           newMux(cfg, log, collector),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn(context.Background(), "shutdown incomplete", logging.Err(err))
		}
	}()

	log.Info(ctx, "serving power flow API", logging.String("addr", lis.Addr().String()))
	err = srv.Serve(lis)
	<-done
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
