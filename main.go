package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// newTracerProvider installs the global TracerProvider. Spans are exported
// to stderr only when export is set; otherwise they are sampled and dropped.
func newTracerProvider(export bool) (*sdktrace.TracerProvider, error) {
	var opts []sdktrace.TracerProviderOption
	if export {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return nil, errors.Wrap(err, "stdout trace exporter")
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp, nil
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	seed := flag.Int64("seed", time.Now().UnixNano(), "seed for weight init, datasets and batch sampling")
	level := flag.String("log-level", "info", "debug, info, warn or error")
	traceExport := flag.Bool("trace", false, "print OpenTelemetry spans to stderr")
	flag.Parse()

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(*level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	tp, err := newTracerProvider(*traceExport)
	if err != nil {
		logger.Error("tracing_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	mux := http.NewServeMux()
	NewServer(logger, *seed, tp).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing_shutdown_failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("server_starting", slog.String("addr", *addr), slog.Int64("seed", *seed), slog.Bool("trace", *traceExport))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	<-done
	logger.Info("server_stopped")
}
