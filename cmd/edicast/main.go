// Command edicast runs the internet-radio relay: it loads a TOML
// configuration file, starts one Source worker per configured source and
// one Stream worker per configured stream, and serves the public
// (listener) and control (broadcaster) HTTP endpoints until interrupted.
//
// Adapted from cmd/server/main.go's wiring shape (load config, construct
// the worker registry, register HTTP routes, block on ListenAndServe),
// generalized to two listen addresses and a graceful shutdown sequence per
// original_source/src/main.rs's env::args_os().nth(1) + process::exit(1)
// error handling.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ivugurura/edicast/config"
	"github.com/ivugurura/edicast/internal/analytics"
	"github.com/ivugurura/edicast/internal/geo"
	"github.com/ivugurura/edicast/internal/httpapi"
	"github.com/ivugurura/edicast/internal/listeners"
	"github.com/ivugurura/edicast/internal/relay"
)

const controlPathPrefix = "/source/"

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <config-path>\n", os.Args[0])
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	configPath := flag.Arg(0)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rel, err := relay.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start relay", "error", err)
		os.Exit(1)
	}

	geoResolver := geo.NewResolver(os.Getenv("EDICAST_GEOIP_DB"), os.Getenv("EDICAST_GEOIP_SALT"), os.Getenv("EDICAST_GEOIP_DB") != "")
	defer geoResolver.Close()

	listenerStore := listeners.NewStore()
	go logListenerEvents(ctx, listenerStore, logger)

	analyticsClient := analytics.NewClient(os.Getenv("EDICAST_ANALYTICS_URL"), os.Getenv("EDICAST_ANALYTICS_KEY"))
	for _, sc := range cfg.Stream {
		tracker := listeners.NewTracker(sc.Path, listenerStore, analyticsClient)
		go tracker.Run(ctx, 30*time.Second)
	}
	go rel.StartMonitor(ctx, listenerStore, time.Minute)

	publicServer := &http.Server{
		Addr:    cfg.Listen.Public,
		Handler: httpapi.NewPublicHandler(rel, listenerStore, geoResolver, logger),
	}
	controlServer := &http.Server{
		Addr:    cfg.Listen.Control,
		Handler: httpapi.NewControlHandler(rel, controlPathPrefix, logger),
	}

	errs := make(chan error, 2)
	go func() {
		logger.Info("public endpoint listening", "addr", cfg.Listen.Public)
		errs <- publicServer.ListenAndServe()
	}()
	go func() {
		logger.Info("control endpoint listening", "addr", cfg.Listen.Control)
		errs <- controlServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = publicServer.Shutdown(shutdownCtx)
	_ = controlServer.Shutdown(shutdownCtx)
	cancel()
}

// logListenerEvents relays the listener store's connect/disconnect feed
// into structured logs until ctx is done.
func logListenerEvents(ctx context.Context, store *listeners.Store, logger *slog.Logger) {
	events := store.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			logger.Info("listener event", "type", ev.Type, "stream", ev.Listener.StreamName, "listener", ev.Listener.ID)
		}
	}
}
