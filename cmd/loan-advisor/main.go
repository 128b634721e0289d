// cmd/loan-advisor/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"loan-advisor/internal/api"
	"loan-advisor/internal/audit"
	awsclient "loan-advisor/internal/common/aws"
	"loan-advisor/internal/common/camunda"
	"loan-advisor/internal/common/config"
	"loan-advisor/internal/common/database"
	"loan-advisor/internal/common/genai"
	"loan-advisor/internal/common/logger"
	"loan-advisor/internal/common/observability"
	"loan-advisor/internal/documents"
	"loan-advisor/internal/notify"
	"loan-advisor/internal/orchestrator"
	"loan-advisor/internal/stages"
	"loan-advisor/internal/store"
	"loan-advisor/internal/transcript"
	processmessage "loan-advisor/internal/workers/loan/process-message"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting loan advisor...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := observability.New(cfg.Observability, log)

	var (
		checks   []api.Check
		hooks    []orchestrator.Hook
		cleanups []func()
	)
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	// --- Repository ---
	var repo store.Repository
	switch cfg.Repository.Backend {
	case "redis":
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		cleanups = append(cleanups, func() { _ = rdb.Close() })
		checks = append(checks, api.Check{Name: "redis", Probe: rdb.Ping})
		repo = store.NewRedisRepository(rdb.Client, cfg.Repository.KeyPrefix, cfg.Repository.TTLDuration())
		zapLog.Info("Redis repository ready")
	default:
		repo = store.NewMemoryRepository(cfg.Repository.Shards)
		zapLog.Info("In-memory repository ready", zap.Int("shards", cfg.Repository.Shards))
	}

	// --- Text generation ---
	gen, closeGen, err := genai.New(ctx, cfg.APIs, log)
	if err != nil {
		zapLog.Fatal("text generator init failed", zap.Error(err))
	}
	cleanups = append(cleanups, func() { _ = closeGen() })

	// --- Sanction letter storage ---
	var docStore documents.Store
	switch cfg.Documents.Backend {
	case "minio":
		err = retryWithBackoff(func() error {
			s, err := documents.NewMinioStore(ctx, cfg.Integrations.Minio, log)
			if err != nil {
				return err
			}
			docStore = s
			return nil
		}, 10, 2*time.Second, zapLog, "MinIO connection")
	default:
		docStore, err = documents.NewLocalStore(cfg.Documents.LocalDir)
	}
	if err != nil {
		zapLog.Fatal("document store init failed", zap.Error(err))
	}
	renderer := documents.NewRenderer(docStore, cfg.Documents.Lender, log)

	st := stages.New(stages.Dependencies{
		Generator: gen,
		KYC:       stages.RandomKYC{SuccessRate: cfg.Loan.KYCSuccessRate},
		Bureau:    stages.RandomBureau{Min: cfg.Loan.MinCreditScore, Max: cfg.Loan.MaxCreditScore},
		Renderer:  renderer,
		Logger:    log,
	})

	serverOpts := []api.Option{api.WithLetters(docStore)}

	// --- Audit trail ---
	if cfg.Database.Postgres.Enabled {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		cleanups = append(cleanups, func() { _ = pg.Close() })

		recorder := audit.NewRecorder(pg.DB, log)
		if err := recorder.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("audit schema init failed", zap.Error(err))
		}
		hooks = append(hooks, recorder)
		checks = append(checks, api.Check{Name: "postgres", Probe: pg.Ping})
		serverOpts = append(serverOpts, api.WithHistory(recorder))
		zapLog.Info("PostgreSQL audit trail enabled")
	}

	// --- Transcript index ---
	if cfg.Database.Elasticsearch.Enabled {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}

		index := transcript.NewIndex(es.Client, cfg.Database.Elasticsearch.TranscriptIndex, log)
		if err := index.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("transcript index init failed", zap.Error(err))
		}
		hooks = append(hooks, index)
		checks = append(checks, api.Check{Name: "elasticsearch", Probe: es.Ping})
		serverOpts = append(serverOpts, api.WithTranscripts(index))
		cluster, version := es.Cluster()
		zapLog.Info("Elasticsearch transcript index enabled",
			zap.String("cluster", cluster),
			zap.String("version", version),
		)
	}

	// --- Notifications ---
	if cfg.Notifications.Enabled {
		aws := cfg.Integrations.AWS
		var (
			email notify.EmailSender
			sms   notify.SMSSender
		)
		if aws.SES.Enabled {
			c, err := awsclient.NewSESClient(ctx, aws.Region, aws.SES.FromEmail)
			if err != nil {
				zapLog.Fatal("ses client init failed", zap.Error(err))
			}
			email = c
		}
		if aws.SNS.Enabled {
			c, err := awsclient.NewSNSClient(ctx, aws.Region, aws.SNS.DefaultSMSSenderID)
			if err != nil {
				zapLog.Fatal("sns client init failed", zap.Error(err))
			}
			sms = c
		}

		notifier := notify.New(cfg.Notifications, email, sms, log)
		notifier.Start(ctx)
		cleanups = append(cleanups, notifier.Close)
		hooks = append(hooks, notifier)
		zapLog.Info("Notifications enabled",
			zap.Bool("email", email != nil),
			zap.Bool("sms", sms != nil),
		)
	}

	orch := orchestrator.New(repo, st, log,
		orchestrator.WithHooks(hooks...),
		orchestrator.WithObservability(obs),
	)

	// --- Zeebe worker ---
	var jobWorker worker.JobWorker
	if cfg.Camunda.Enabled {
		var zc *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zc, err = camunda.NewClient(ctx, cfg.Camunda)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		cleanups = append(cleanups, func() {
			if err := zc.Close(); err != nil {
				zapLog.Error("Error closing Zeebe client", zap.Error(err))
			}
		})
		checks = append(checks, api.Check{Name: "zeebe", Probe: zc.HealthCheck})

		wcfg := config.GetWorkerConfig(cfg, processmessage.TaskType)
		handler := processmessage.NewHandler(processmessage.LoadConfig(wcfg), orch, log)
		jobWorker = camunda.StartWorker(zc.Zeebe(), processmessage.TaskType, wcfg, handler.Handle, log)
	}

	// --- HTTP API ---
	serverOpts = append(serverOpts, api.WithReadinessChecks(checks...))
	srv := api.NewServer(orch, log, serverOpts...)
	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      http.TimeoutHandler(srv.Router(), cfg.Server.RequestTimeoutDuration(), `{"error":{"code":"TIMEOUT_ERROR","message":"request timed out"}}`),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP API listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP API failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP API", zap.Error(err))
	}
	if jobWorker != nil {
		jobWorker.Close()
		jobWorker.AwaitClose()
	}
	obs.Shutdown(shutdownCtx)

	zapLog.Info("Loan advisor stopped gracefully")
}
