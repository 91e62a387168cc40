package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/euii-ii/NovaGuard-sub005/internal/application"
	appanalysis "github.com/euii-ii/NovaGuard-sub005/internal/application/analysis"
	appaudit "github.com/euii-ii/NovaGuard-sub005/internal/application/audit"
	"github.com/euii-ii/NovaGuard-sub005/internal/config"
	domanalysis "github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
	domaudit "github.com/euii-ii/NovaGuard-sub005/internal/domain/audit"
	"github.com/euii-ii/NovaGuard-sub005/internal/infra/agents"
	aiopenai "github.com/euii-ii/NovaGuard-sub005/internal/infra/ai/openai"
	"github.com/euii-ii/NovaGuard-sub005/internal/infra/httpserver"
	ledgerfile "github.com/euii-ii/NovaGuard-sub005/internal/infra/ledger/file"
	ledgermysql "github.com/euii-ii/NovaGuard-sub005/internal/infra/ledger/mysql"
	ledgerpg "github.com/euii-ii/NovaGuard-sub005/internal/infra/ledger/postgres"
	"github.com/euii-ii/NovaGuard-sub005/internal/infra/preprocessor"
	minioStore "github.com/euii-ii/NovaGuard-sub005/internal/infra/storage"
	"github.com/euii-ii/NovaGuard-sub005/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()
	clock := application.SystemClock{}

	// inference client (optional; agents run static detectors without it)
	var infer domanalysis.InferenceClient
	if cfg.OpenAI.APIKey != "" {
		infer = aiopenai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}

	// orchestrator
	pool := appanalysis.NewPool(
		cfg.Analysis.MaxConcurrentAgents,
		cfg.Analysis.RetryAttempts,
		time.Duration(cfg.Analysis.RetryBackoffMs)*time.Millisecond,
	)
	cache := appanalysis.NewCache(
		time.Duration(cfg.Cache.TTLSeconds)*time.Second,
		cfg.Cache.MaxEntries,
		clock,
	)
	agg := appanalysis.NewAggregator(
		cfg.Analysis.ConfidenceThreshold,
		cfg.Analysis.HighRiskThreshold,
		cfg.Analysis.MediumRiskThreshold,
	)

	// audit ledger
	var auditSvc *appaudit.Service
	var sink appanalysis.AuditSink
	if cfg.Ledger.Enabled {
		store, err := openLedger(ctx, cfg, clock)
		if err != nil {
			log.Fatalf("ledger init error: %v", err)
		}

		var artifacts appaudit.ArtifactStore
		if cfg.Minio.Enabled {
			s, err := minioStore.New(ctx,
				cfg.Minio.Endpoint,
				cfg.Minio.Region,
				cfg.Minio.BucketName,
				cfg.Minio.AccessKey,
				cfg.Minio.SecretKey,
				cfg.Minio.UseSSL,
			)
			if err != nil {
				log.Fatalf("minio init error: %v", err)
			}
			artifacts = s
		}

		auditSvc = appaudit.NewService(store, artifacts, clock, cfg.Ledger.QueueSize)
		defer auditSvc.Close()
		sink = auditSvc
	}

	svc := appanalysis.NewService(
		agents.All(infer),
		preprocessor.New(),
		pool, cache, agg, sink, clock,
		appanalysis.Options{
			DefaultAgents:       cfg.Analysis.DefaultAgents,
			MaxConcurrentAgents: cfg.Analysis.MaxConcurrentAgents,
			Timeout:             time.Duration(cfg.Analysis.TimeoutMs) * time.Millisecond,
		},
	)

	metrics := middleware.NewMetrics()
	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(svc, auditSvc, metrics, cfg.Auth.APIKey))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 200 * time.Second, // must outlive the analysis timeout
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// openLedger selects the ledger backend from config.
func openLedger(ctx context.Context, cfg *config.Config, clock application.Clock) (domaudit.Store, error) {
	switch cfg.Ledger.Backend {
	case "mysql":
		db, err := ledgermysql.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, err
		}
		store := ledgermysql.NewStore(db, clock)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		db, err := ledgerpg.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, err
		}
		store := ledgerpg.NewStore(db, clock)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return ledgerfile.Open(cfg.Ledger.Path, clock)
	}
}
