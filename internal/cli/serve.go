package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/oasrouter/internal/dispatch"
	"github.com/mark3labs/oasrouter/internal/router/echorouter"
	"github.com/mark3labs/oasrouter/internal/router/ginrouter"
)

const (
	metricsPath     = "/metrics"
	shutdownTimeout = 5 * time.Second
)

var serveRunner = runServe

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an API description with example-backed mock handlers",
		Long: "Serve every operation of an OpenAPI document through the validating dispatch pipeline. " +
			"Handlers answer with the declared examples; credentials accepted by each security scheme come from the config file.",
		Example: strings.TrimSpace(`  oasrouter serve --input openapi.yaml --addr :8080
  oasrouter --config oasrouter.yaml serve --router echo --metrics`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return serveRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	addInputFlags(cmd)
	flags.String("addr", "", "Listen address (default :8080)")
	flags.String("router", "", "HTTP router to mount on (gin|echo); defaults to gin")
	flags.Bool("metrics", false, "Expose Prometheus metrics on "+metricsPath)
	flags.Bool("trace", false, "Print OpenTelemetry spans to stderr")

	return cmd
}

// addInputFlags registers the flags every API-loading command shares.
func addInputFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the OpenAPI document")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("schema", nil, "Shared JSON schema documents referenced by the API")
	flags.String("unbound", "", "Operations without a handler: skip or reject")
	flags.Duration("fetch-timeout", 0, "Timeout per HTTP request when --input or its refs are URLs (default 10s)")
	flags.Int("fetch-retries", 0, "Attempts per URL on transient failures (default 3)")
}

func runServe(ctx context.Context, cfg *Config) error {
	logger := newLogger(cfg.Verbose)
	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []dispatch.Option
	if cfg.Trace {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := tp.Shutdown(sctx); err != nil {
				logger.Warn("trace shutdown", slog.Any("error", err))
			}
		}()
		opts = append(opts, dispatch.WithTracerProvider(tp))
	}

	handler, err := newServeHandler(ctx, cfg, logger, opts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", slog.String("addr", cfg.Addr), slog.String("router", cfg.Router))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// newServeHandler loads the API and mounts the mock dispatcher on the
// configured router.
func newServeHandler(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...dispatch.Option) (http.Handler, error) {
	api, err := loadAPI(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var reg *prometheus.Registry
	if cfg.Metrics {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err := dispatch.NewMetrics(reg)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		opts = append(opts, dispatch.WithMetrics(m))
	}

	d, err := newMockDispatcher(cfg, api, logger, opts...)
	if err != nil {
		return nil, err
	}
	for _, problem := range d.Audit() {
		logger.Warn("security configuration", slog.Any("error", problem))
	}

	switch cfg.Router {
	case "echo":
		e := echo.New()
		e.HideBanner = true
		e.HidePort = true
		d.Mount(echorouter.New(e))
		if reg != nil {
			e.GET(metricsPath, echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
		}
		return e, nil
	default:
		engine := gin.New()
		engine.Use(gin.Recovery(), ginrouter.ErrorHandler(logger))
		d.Mount(ginrouter.New(engine))
		if reg != nil {
			engine.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
		}
		return engine, nil
	}
}
