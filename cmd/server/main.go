package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"voicegate/internal/blob"
	"voicegate/internal/platform/config"
	"voicegate/internal/platform/httpserver"
	"voicegate/internal/platform/logger"
	"voicegate/internal/platform/middleware"
	platformredis "voicegate/internal/platform/redis"
	"voicegate/internal/voice/engine"
	"voicegate/internal/voice/enrollment"
	"voicegate/internal/voice/handler"
	"voicegate/internal/voice/provider"
	"voicegate/internal/voice/store/profile"
	"voicegate/internal/voice/store/sample"
	"voicegate/internal/voice/store/session"
	"voicegate/pkg/platform/audit"
	auditmemory "voicegate/pkg/platform/audit/store/memory"
	auditpostgres "voicegate/pkg/platform/audit/store/postgres"
	auditworker "voicegate/pkg/platform/audit/worker"
	"voicegate/pkg/platform/circuit"
	"voicegate/pkg/platform/httputil"
)

// main wires storage, the provider bridge, and the HTTP surface, then runs
// the server and the audit worker until shutdown. Business logic lives in
// the internal/voice packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Session state lives in Redis when configured so enrollment survives
	// restarts; otherwise it stays in process memory.
	var sessions session.Store = session.NewInMemory()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessions = session.NewRedis(redisClient.Client)
		log.Info("session store: redis")
	} else {
		log.Info("session store: memory")
	}

	// Profiles, samples, and the audit trail share one Postgres pool.
	var (
		profiles   profile.Store = profile.NewInMemory()
		samples    sample.Store  = sample.NewInMemory()
		auditStore audit.Store   = auditmemory.NewInMemoryStore()
	)
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			log.Error("postgres connection failed", "error", err.Error())
			os.Exit(1)
		}
		defer pool.Close()
		profiles = profile.NewPostgres(pool)
		samples = sample.NewPostgres(pool)
		auditStore = auditpostgres.New(pool)
		log.Info("profile store: postgres")
	} else {
		log.Info("profile store: memory")
	}

	var blobs blob.Store = blob.NewInMemoryStore()
	if cfg.Blob.Bucket != "" {
		blobs = blob.NewS3(newS3Client(cfg.Blob), cfg.Blob.Bucket, cfg.Blob.Prefix)
		log.Info("blob store: s3", "bucket", cfg.Blob.Bucket)
	} else {
		log.Info("blob store: memory")
	}

	var verifier provider.Verifier
	if cfg.Provider.Configured() {
		verifier = provider.NewHTTPBridge(cfg.Provider.ServiceURL, cfg.Provider.APIKey, log,
			provider.WithTimeout(cfg.Provider.Timeout))
		log.Info("external voice provider configured", "url", cfg.Provider.ServiceURL)
	} else {
		log.Warn("no external voice provider configured, verification uses local tiers only")
	}

	publisher := audit.NewPublisher(256)
	worker := auditworker.NewWorker(auditStore, publisher.Inbox())

	manager := enrollment.NewManager(sessions, samples, profiles, blobs,
		enrollment.NewTokenService(cfg.Server.TokenSigningKey),
		enrollment.Config{
			SamplesRequired: cfg.Enrollment.SamplesRequired,
			SessionTTL:      cfg.Enrollment.SessionTTL,
		},
		publisher, log)

	eng := engine.New(profiles, verifier, circuit.New("voice-provider"),
		engine.Config{AllowFallback: cfg.Provider.AllowFallback}, publisher, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestLogger(log))
	handler.New(manager, eng, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting voicegate", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown error", "error", err.Error())
		os.Exit(1)
	}
	log.Info("voicegate stopped")
}

// newS3Client builds an S3 client straight from config. When an endpoint is
// set (MinIO and friends) path-style addressing is required.
func newS3Client(cfg config.Blob) *s3.Client {
	return s3.New(s3.Options{
		Region: cfg.Region,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
			}, nil
		}),
		BaseEndpoint: endpointOrNil(cfg.Endpoint),
		UsePathStyle: cfg.Endpoint != "",
	})
}

func endpointOrNil(endpoint string) *string {
	if endpoint == "" {
		return nil
	}
	return &endpoint
}
