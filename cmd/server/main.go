package main

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"certflow/internal/auth"
	"certflow/internal/auth/jwtoken"
	"certflow/internal/auth/revocation"
	"certflow/internal/certificate"
	"certflow/internal/directory"
	"certflow/internal/docstore"
	"certflow/internal/inspection"
	"certflow/internal/platform/config"
	"certflow/internal/platform/httpserver"
	"certflow/internal/platform/logger"
	"certflow/internal/platform/redis"
	httptransport "certflow/internal/transport/http"
	"certflow/internal/workflow"
	"certflow/internal/workflow/metrics"
	"certflow/pkg/platform/audit"
	auditpublisher "certflow/pkg/platform/audit/publisher"
	kafkasink "certflow/pkg/platform/audit/sink/kafka"
	auditmemory "certflow/pkg/platform/audit/store/memory"
	auditpostgres "certflow/pkg/platform/audit/store/postgres"
	"certflow/pkg/platform/audit/worker"
	txcontext "certflow/pkg/platform/tx"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence: Postgres when a DSN is configured, process memory otherwise.
	// The SQL runner brackets every mutation in one transaction; the memory
	// stores mutate under their own locks and use the passthrough.
	var (
		appStore        workflow.Store
		inspectionStore inspection.Store
		auditStore      audit.Store
		certStore       certificate.Store
		txRunner        workflow.TxRunner = txcontext.Passthrough{}
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("ping postgres", "error", err)
			os.Exit(1)
		}
		appStore = workflow.NewPostgresStore(db)
		inspectionStore = inspection.NewPostgresStore(db)
		auditStore = auditpostgres.New(db)
		certStore = certificate.NewPostgresStore(db)
		txRunner = txcontext.NewSQLRunner(db)
	} else {
		appStore = workflow.NewInMemoryStore()
		inspectionStore = inspection.NewInMemoryStore()
		auditStore = auditmemory.NewInMemoryStore()
		certStore = certificate.NewMemoryStore()
	}

	userStore := directory.NewInMemoryStore()
	fileStore := docstore.NewInMemoryStore()

	if err := directory.SeedAccounts(ctx, userStore, cfg.SeedPassword); err != nil {
		log.Error("seed accounts", "error", err)
		os.Exit(1)
	}

	// Audit pipeline: List always reads through the publisher; command
	// emission goes through the Kafka worker when brokers are configured.
	pub := auditpublisher.NewPublisher(auditStore)
	defer pub.Close()

	g, ctx := errgroup.WithContext(ctx)

	var auditor workflow.AuditPublisher = pub
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafkasink.New(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer sink.Close()

		inbox := make(chan audit.Event, 256)
		auditor = inboxEmitter(inbox)
		w := worker.NewWorker(auditStore, sink, inbox)
		g.Go(func() error {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	// Token revocation: shared through Redis when configured.
	var trl revocation.TokenRevocationList = revocation.NewMemoryTRL()
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		trl = revocation.NewRedisTRL(redisClient.Client)
	}

	m := metrics.New()

	// One locker shared by the workflow and inspection services: both mutate
	// the same applications and must serialize on the same shard.
	locker := workflow.NewShardedLocker()

	workflowSvc := workflow.NewService(workflow.Deps{
		Store:       appStore,
		Locker:      locker,
		Audit:       auditor,
		Metrics:     m,
		Logger:      log,
		Certs:       certStore,
		Renderer:    certificate.NewTextRenderer(cfg.IssuerName),
		Files:       fileStore,
		Tx:          txRunner,
		ScoreSource: func(string) int { return 50 + rand.Intn(51) },
	})

	inspectionSvc := inspection.NewService(inspection.Deps{
		Store:   inspectionStore,
		Apps:    appStore,
		Locker:  locker,
		Audit:   auditor,
		Metrics: m,
		Logger:  log,
		Tx:      txRunner,
	})
	workflowSvc.SetPurger(inspectionSvc)

	authSvc := auth.NewService(auth.Deps{
		Users:    userStore,
		Tokens:   jwtoken.NewJWTService(cfg.JWTSigningKey, "certflow", "certflow-api"),
		Revoked:  trl,
		Audit:    auditor,
		Logger:   log,
		TokenTTL: cfg.TokenTTL,
	})
	userSvc := directory.NewService(userStore, auditor, log)

	handler := httptransport.NewHandler(httptransport.Deps{
		Workflow:    workflowSvc,
		Inspections: inspectionSvc,
		Auth:        authSvc,
		Users:       userSvc,
		Files:       fileStore,
		Certs:       certStore,
		Publisher:   pub,
		AuditStore:  auditStore,
		Logger:      log,
	})
	router := httptransport.NewRouter(handler)
	srv := httpserver.New(cfg.Addr, router)

	g.Go(func() error {
		log.Info("starting certflow server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return httpserver.Shutdown(srv)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
