package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	slackapi "github.com/slack-go/slack"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/moseshope/scraping-admin-dashboard/internal/api"
	"github.com/moseshope/scraping-admin-dashboard/internal/config"
	"github.com/moseshope/scraping-admin-dashboard/internal/filter"
	"github.com/moseshope/scraping-admin-dashboard/internal/health"
	"github.com/moseshope/scraping-admin-dashboard/internal/launcher"
	"github.com/moseshope/scraping-admin-dashboard/internal/logs"
	"github.com/moseshope/scraping-admin-dashboard/internal/metrics"
	"github.com/moseshope/scraping-admin-dashboard/internal/notify"
	"github.com/moseshope/scraping-admin-dashboard/internal/orchestrator"
	"github.com/moseshope/scraping-admin-dashboard/internal/project"
	"github.com/moseshope/scraping-admin-dashboard/internal/reconcile"
	"github.com/moseshope/scraping-admin-dashboard/internal/retry"
	"github.com/moseshope/scraping-admin-dashboard/internal/store"
	"github.com/moseshope/scraping-admin-dashboard/internal/utilization"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Str("namespace", cfg.WorkerNamespace).
		Bool("slack_enabled", cfg.SlackEnabled()).
		Bool("utilization_enabled", cfg.MetricsEnabled()).
		Msg("starting scraping admin dashboard")

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Persistence
	db, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}

	// Worker template spec
	template, err := orchestrator.LoadTemplateSpec(cfg.TemplateSpecPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.TemplateSpecPath).Msg("failed to load worker template spec")
	}

	// Kubernetes clientset, shared between the platform and the log reader
	clientset, err := buildClientset(cfg.KubeconfigPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build kubernetes client")
	}

	platform := orchestrator.NewKubernetesFromInterface(clientset, orchestrator.KubernetesConfig{
		Namespace:    cfg.WorkerNamespace,
		TemplateName: cfg.WorkerTemplate,
		Template:     template,
	}, logger)

	logReader := logs.NewKubernetes(clientset, cfg.WorkerNamespace, logger)

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("database", func(ctx context.Context) health.Status {
		if err := db.Ping(); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})
	checker.Register("kubernetes", func(ctx context.Context) health.Status {
		if _, err := clientset.Discovery().ServerVersion(); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	// Per-task utilization (if configured)
	var usage utilization.Querier
	if cfg.MetricsEnabled() {
		prom, promErr := utilization.NewPrometheus(cfg.PrometheusURL, cfg.WorkerNamespace, time.Minute, logger)
		if promErr != nil {
			logger.Warn().Err(promErr).Msg("failed to init prometheus client (non-fatal)")
		} else {
			usage = prom
			logger.Info().Str("url", cfg.PrometheusURL).Msg("prometheus utilization queries enabled")
		}
	} else {
		logger.Info().Msg("PROMETHEUS_URL not set, utilization reporting disabled")
	}

	// Slack notifications (if configured)
	var notifier notify.Notifier = notify.Noop{}
	if cfg.SlackEnabled() {
		notifier = notify.NewSlack(slackapi.New(cfg.SlackBotToken), cfg.SlackChannel, logger)
		logger.Info().Str("channel", cfg.SlackChannel).Msg("slack notifications enabled")
	}

	m := metrics.New()

	retryCfg := retry.Config{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		Jitter:      true,
	}

	// Core services
	resolver := filter.NewResolver(db.Estimates(), retryCfg, logger)
	taskLauncher := launcher.New(platform, m, logger)
	projects := project.NewService(db, resolver, taskLauncher, platform, logger)

	reconciler := reconcile.New(db, platform, logReader, usage, notifier, m, reconcile.Config{
		Interval:      cfg.ReconcileInterval,
		SuccessMarker: cfg.SuccessMarker,
		ErrorMarker:   cfg.ErrorMarker,
		LogTailLines:  cfg.LogTailLines,
		LogFetchLimit: cfg.LogFetchLimit,
		Retry:         retryCfg,
	}, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Run(ctx)
	}()

	// HTTP API
	handlers := api.NewHandlers(projects, resolver, db.Estimates(), reconciler, logReader, checker, cfg.LogTailLines, logger)
	server := api.NewServer(api.ServerConfig{
		ListenAddr: cfg.ListenAddr,
		AuthConfig: api.AuthConfig{
			Mode:      cfg.AuthMode,
			APIKey:    cfg.APIKey,
			JWTSecret: cfg.JWTSecret,
		},
		CORSOrigins: cfg.CORSOrigins,
	}, handlers, m, logger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("api server stopped")
		}
	}()

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	// Cancel context to signal all goroutines
	cancel()

	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("api server shutdown error")
	}

	// Wait for in-flight work to complete
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(15 * time.Second):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	if err := db.Close(); err != nil {
		logger.Error().Err(err).Msg("store close error")
	}

	logger.Info().Msg("scraping admin dashboard stopped")
}

// buildClientset uses the kubeconfig at path when set, otherwise the
// in-cluster service account.
func buildClientset(path string) (kubernetes.Interface, error) {
	var restConfig *rest.Config
	var err error
	if path != "" {
		restConfig, err = clientcmd.BuildConfigFromFlags("", path)
	} else {
		restConfig, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(restConfig)
}
