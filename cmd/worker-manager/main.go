// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"prospect-workers/internal/common/aws"
	"prospect-workers/internal/common/camunda"
	"prospect-workers/internal/common/config"
	"prospect-workers/internal/common/database"
	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/common/observability"
	"prospect-workers/internal/prospect/wiring"
	"prospect-workers/pkg/registry"

	ep "prospect-workers/internal/workers/enrichment/enrich-prospect"
	sp "prospect-workers/internal/workers/enrichment/score-prospect"
	ve "prospect-workers/internal/workers/enrichment/verify-email"
	gno "prospect-workers/internal/workers/outreach/generate-outreach"
	so "prospect-workers/internal/workers/outreach/send-outreach"
)

const activityRegistryPath = "configs/activity-registry.json"

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
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	zap.ReplaceGlobals(zapLog)
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs, err := observability.New(cfg.Observability.ServiceName)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown()

	if cfg.Observability.TracingEnabled {
		tp := observability.NewTracerProvider(cfg.Observability.ServiceName, zapLog)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
	}

	ctx := context.Background()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
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
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis (extract cache) ---
	var rdb *goredis.Client
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Warn("redis unavailable, crawling without cache", zap.Error(err))
	} else {
		defer redisClient.Close()
		rdb = redisClient.Client
		zapLog.Info("Redis connected successfully")
	}

	// --- Elasticsearch (prospect index) ---
	var es *elasticsearch.Client
	if cfg.Database.Elasticsearch.Enabled() {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, prospects will not be indexed", zap.Error(err))
		} else {
			es = esClient.Client
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	components, err := wiring.Build(cfg, wiring.Backends{DB: pg.DB, Redis: rdb, ES: es}, log)
	if err != nil {
		zapLog.Fatal("enrichment stack init failed", zap.Error(err))
	}

	// --- AWS ---
	var mailer so.Mailer
	if cfg.Outreach.SES.Enabled {
		ses, err := aws.NewSESClient(ctx, cfg.Outreach.SES.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		mailer = ses
	}
	var notifier ep.Notifier
	if cfg.Notifications.SNS.Enabled {
		sns, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region, cfg.Notifications.SNS.TopicARN)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		notifier = sns
	}

	// --- Workers ---
	activities, err := registry.LoadRegistry(activityRegistryPath)
	if err != nil {
		zapLog.Warn("activity registry not loaded", zap.String("path", activityRegistryPath), zap.Error(err))
		activities = nil
	}

	var workers []*camunda.CamundaWorker
	register := func(taskType string, handler camunda.JobHandler) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		if !wcfg.Enabled {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			return
		}
		if activities != nil {
			if _, ok := activities.Find(taskType); !ok {
				zapLog.Warn("worker missing from activity registry, run registry-updater sync", zap.String("taskType", taskType))
			}
		}
		w := camunda.NewWorker(zeebe.GetClient(), taskType, camunda.WorkerOptions{
			MaxJobsActive: wcfg.MaxJobsActive,
			// The job lock outlives the handler's own deadline so a slow job
			// is failed by the handler rather than reassigned by the broker.
			Timeout: config.GetDuration(wcfg.Timeout) + 30*time.Second,
		}, handler, obs, zapLog)
		w.Start()
		workers = append(workers, w)
	}
	handlerTimeout := func(taskType string, fallback time.Duration) time.Duration {
		if wcfg := config.GetWorkerConfig(cfg, taskType); wcfg.Timeout > 0 {
			return config.GetDuration(wcfg.Timeout)
		}
		return fallback
	}

	epCfg := ep.LoadConfig()
	epCfg.Timeout = handlerTimeout(ep.TaskType, epCfg.Timeout)
	epCfg.NotifyHotLeads = cfg.Notifications.SNS.Enabled
	register(ep.TaskType, ep.NewHandler(epCfg, components.Pipeline, components.Store, notifier, log))

	spCfg := sp.LoadConfig()
	spCfg.Timeout = handlerTimeout(sp.TaskType, spCfg.Timeout)
	register(sp.TaskType, sp.NewHandler(spCfg, components.Store, log))

	veCfg := ve.LoadConfig()
	veCfg.Timeout = handlerTimeout(ve.TaskType, veCfg.Timeout)
	register(ve.TaskType, ve.NewHandler(veCfg, components.Verifier, log))

	gnoCfg := gno.LoadConfig()
	gnoCfg.Timeout = handlerTimeout(gno.TaskType, gnoCfg.Timeout)
	register(gno.TaskType, gno.NewHandler(gnoCfg, components.Generator, log))

	soCfg := so.LoadConfig()
	soCfg.Timeout = handlerTimeout(so.TaskType, soCfg.Timeout)
	soCfg.Enabled = cfg.Outreach.SES.Enabled
	soCfg.From = senderAddress(cfg.Outreach.SenderName, cfg.Outreach.SenderEmail)
	soCfg.ReplyTo = cfg.Outreach.SenderEmail
	register(so.TaskType, so.NewHandler(soCfg, mailer, components.Store, log))

	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		rctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		checks := map[string]string{"status": "ready", "zeebe": "ok", "postgres": "ok"}
		code := http.StatusOK
		if err := zeebe.HealthCheck(rctx); err != nil {
			checks["zeebe"], checks["status"], code = err.Error(), "not_ready", http.StatusServiceUnavailable
		}
		if err := pg.Ping(rctx); err != nil {
			checks["postgres"], checks["status"], code = err.Error(), "not_ready", http.StatusServiceUnavailable
		}
		writeStatus(w, code, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Observability.MetricsAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

func senderAddress(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

func writeStatus(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
