// Command fixpipeline is the fix pipeline server: it listens for CI
// webhooks, runs the remediation state machine, and exposes a metrics
// endpoint, wiring together every pkg/ collaborator this repository
// implements.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/relayci/fixpipeline/internal/config"
	"github.com/relayci/fixpipeline/pkg/adapter"
	"github.com/relayci/fixpipeline/pkg/consensus"
	"github.com/relayci/fixpipeline/pkg/contextbuilder"
	"github.com/relayci/fixpipeline/pkg/eventstore"
	"github.com/relayci/fixpipeline/pkg/gitrepo"
	"github.com/relayci/fixpipeline/pkg/governor"
	"github.com/relayci/fixpipeline/pkg/llm"
	"github.com/relayci/fixpipeline/pkg/metrics"
	"github.com/relayci/fixpipeline/pkg/notification"
	"github.com/relayci/fixpipeline/pkg/orchestrator"
	"github.com/relayci/fixpipeline/pkg/pipeline"
	"github.com/relayci/fixpipeline/pkg/plan"
	"github.com/relayci/fixpipeline/pkg/policy"
	"github.com/relayci/fixpipeline/pkg/prclient"
	"github.com/relayci/fixpipeline/pkg/provenance"
	"github.com/relayci/fixpipeline/pkg/rca"
	"github.com/relayci/fixpipeline/pkg/runstore"
	"github.com/relayci/fixpipeline/pkg/sandbox"
	"github.com/relayci/fixpipeline/pkg/webhook"
)

func main() {
	configPath := pflag.String("config", "config.yaml", "path to the YAML configuration file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fixpipeline: loading config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging)
	zlog := newZapLogger(cfg.Logging)
	defer zlog.Sync() //nolint:errcheck

	ctx, stop := signalCancelContext()
	defer stop()

	db, err := sql.Open("pgx", cfg.Database.DSN())
	if err != nil {
		log.WithError(err).Fatal("fixpipeline: opening database")
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	if err := runMigrations(db, log); err != nil {
		log.WithError(err).Fatal("fixpipeline: running migrations")
	}

	sqlxDB := sqlx.NewDb(db, "pgx")

	events := eventstore.NewStore(db, zlog)
	runs := runstore.NewStore(sqlxDB, zlog)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	gov := governor.New(redisClient, cfg.Governor, log)

	policyStore, err := policy.NewStore(cfg.Policy.Path, log)
	if err != nil {
		log.WithError(err).Fatal("fixpipeline: loading policy")
	}
	activePolicy := policyStore.Current(cfg.Policy.DefaultProfile)
	policyEngine, err := policy.NewEngine(ctx, activePolicy)
	if err != nil {
		log.WithError(err).Fatal("fixpipeline: building policy engine")
	}

	var planGen plan.Generator
	if cfg.LLM.Provider == "mock" {
		planGen = plan.NewMockGenerator()
	} else {
		llmClient, err := llm.NewClient(cfg.LLM, log)
		if err != nil {
			log.WithError(err).Fatal("fixpipeline: building LLM client")
		}
		planGen = plan.NewLLMGenerator(llmClient)
	}

	adapters := adapter.DefaultRegistry()
	dockerRuntime := sandbox.NewDockerRuntime(log)
	validator := sandbox.NewValidator(dockerRuntime, adapters, cfg.Sandbox, log)

	var notifier notification.Notifier = notification.NoopNotifier{}
	if cfg.Notification.SlackToken != "" {
		notifier = notification.NewSlackNotifier(cfg.Notification.SlackToken, cfg.Notification.SlackChannel)
	}

	redactor := provenance.NewRedactor(activePolicy.Secrets.ForbiddenPatterns)
	cloneTimeout := time.Duration(cfg.Sandbox.CloneTimeoutSec) * time.Second

	orch := &orchestrator.Orchestrator{
		Adapters:       adapters,
		ContextBuilder: contextbuilder.New(),
		RCAEngine:      rca.New(nil),
		PlanGenerator:  planGen,
		PolicyEngine:   policyEngine,
		Consensus:      consensus.NewCoordinator(),
		Cloner:         gitrepo.New(cfg.Sandbox.CloneDepth, cloneTimeout),
		Validator:      validator,
		PRCreator: prclient.New(prclient.Config{
			Token:        cfg.Repository.Token,
			GitUserName:  cfg.Repository.GitUserName,
			GitUserEmail: cfg.Repository.GitUserEmail,
			BranchPrefix: cfg.Repository.BranchPrefix,
		}),
		Notifier: notifier,
		Redactor: redactor,
		Log:      log,
	}

	dispatcher := &pipeline.Dispatcher{
		Governor:   gov,
		Executor:   orch,
		Events:     events,
		Runs:       runs,
		Log:        log,
		RunTimeout: 10 * time.Minute,
	}

	providers := make(map[webhook.Provider]config.ProviderAuthConfig, len(cfg.Webhook.Providers))
	for name, auth := range cfg.Webhook.Providers {
		providers[webhook.Provider(name)] = auth
	}
	webhookHandler := webhook.NewHandler(providers, events, dispatcher, log)

	webhookServer := &httpServer{addr: ":" + cfg.Server.WebhookPort, handler: webhookHandler.Router(cfg.Webhook.Path), log: log}
	webhookServer.startAsync()
	defer webhookServer.shutdown()

	metricsServer := metrics.NewServer(cfg.Server.MetricsPort, log)
	metricsServer.StartAsync()
	defer metricsServer.Stop(context.Background()) //nolint:errcheck

	log.WithFields(logrus.Fields{
		"webhook_port": cfg.Server.WebhookPort,
		"metrics_port": cfg.Server.MetricsPort,
	}).Info("fixpipeline: ready")

	<-ctx.Done()
	log.Info("fixpipeline: shutting down")
}

// runMigrations applies both stores' embedded goose migrations against db.
// Each store owns its migrations directory independently, so goose runs
// twice against two different base filesystems.
func runMigrations(db *sql.DB, log *logrus.Logger) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	goose.SetBaseFS(eventstore.Migrations)
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("applying pipeline_events migrations: %w", err)
	}

	goose.SetBaseFS(runstore.Migrations)
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("applying fix_pipeline_runs migrations: %w", err)
	}

	goose.SetBaseFS(nil)
	log.Info("fixpipeline: migrations applied")
	return nil
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

func newZapLogger(cfg config.LoggingConfig) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if cfg.Format != "json" {
		zcfg = zap.NewDevelopmentConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.Level); err == nil {
		zcfg.Level = level
	}
	logger, err := zcfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}

// httpServer is the thin ListenAndServe/Shutdown wrapper the webhook
// listener uses, matching the style of pkg/metrics.Server without pulling
// the webhook router into that package.
type httpServer struct {
	addr    string
	handler http.Handler
	log     *logrus.Logger
	server  *http.Server
}

func (s *httpServer) startAsync() {
	s.server = &http.Server{Addr: s.addr, Handler: s.handler}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("webhook server exited")
		}
	}()
}

func (s *httpServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}

// signalCancelContext returns a context cancelled on SIGINT/SIGTERM, the
// same shutdown trigger shape used elsewhere in this codebase's lineage
// for long-running CLI processes.
func signalCancelContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
