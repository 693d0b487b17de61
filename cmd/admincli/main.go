package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/arambo/backoffice/internal/arambo"
	"github.com/arambo/backoffice/internal/config"
	"github.com/arambo/backoffice/internal/logging"
	"github.com/arambo/backoffice/internal/session"
	"github.com/arambo/backoffice/internal/telemetry/metrics"
	"github.com/arambo/backoffice/internal/telemetry/tracing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func usage() {
	fmt.Println(`usage: admincli [flags] <command> [args]

commands:
  login -username <u> -password <p>
  logout
  status
  watch
  properties|trips|trucks|furniture list|get|update|delete [args]
  stats`)
}

func main() {
	// the deferred teardown (controller, otel shutdown) lives in run; only
	// the final exit happens here
	os.Exit(run())
}

func run() int {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		return 2
	}

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		fmt.Printf("load config: %s\n", err)
		return 1
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.LogsPath,
		LogToStdout:   cfg.LogToStdout,
		LogLevel:      cfg.LogLevel,
		LogFormatJSON: false,
		Environment:   cfg.Environment,
		SentryEnabled: cfg.SentryEnabled,
		SentryDSN:     sentryDSN,
		ClientName:    "backoffice-admincli",
	})

	log.Debugf("using back-office API: %s", cfg.APIBaseURL)

	otelShutdown, err := tracing.HoneycombSetup(cfg.TracingEnabled, "backoffice-admincli")
	if err != nil {
		log.Errorf("tracing setup: %s", err)
		return 1
	}
	defer otelShutdown()

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-chOsInterrupt
		log.Warnln("interrupt received, shutting down")
		cancel()
	}()

	credentialsPath := cfg.CredentialsPath
	if credentialsPath == "" {
		confDir, err := os.UserConfigDir()
		if err != nil {
			log.Errorf("resolve user config dir: %s", err)
			return 1
		}
		credentialsPath = filepath.Join(confDir, "arambo-admincli", "credentials.json")
	}

	store := session.NewStore(session.NewFileBackend(credentialsPath))
	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("backoffice", "admincli", promRegistry)

	httpClient := &http.Client{
		Timeout:   cfg.RequestTimeout(),
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	client := arambo.NewClient(cfg.APIBaseURL, httpClient, store, metricsManager)

	controller := session.NewController(
		store, client, &printNotifier{}, session.NopNavigator{}, metricsManager,
	)
	defer controller.Close()
	client.OnUnauthorized(controller.HandleUnauthorized)

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, promRegistry)
	}

	controller.Run(ctx)

	cli := &cli{
		controller: controller,
		client:     client,
		store:      store,
	}
	if err := cli.run(ctx, flag.Args()); err != nil {
		log.Errorf("command failed: %s", err)
		fmt.Printf("error: %s\n", err)
		return 1
	}
	return 0
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()
		if err := server.Close(); err != nil {
			log.Errorf("close metrics server: %s", err)
		}
	}()

	log.Debugf("serving metrics on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorf("metrics server: %s", err)
	}
}
