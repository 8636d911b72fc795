package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq"

	"github.com/complyscan/complyscan/config"
	"github.com/complyscan/complyscan/internal/api"
	"github.com/complyscan/complyscan/internal/db"
	"github.com/complyscan/complyscan/internal/git"
	"github.com/complyscan/complyscan/internal/grade"
	"github.com/complyscan/complyscan/internal/logger"
	"github.com/complyscan/complyscan/internal/queue"
	"github.com/complyscan/complyscan/internal/scan"
	"github.com/complyscan/complyscan/internal/services"
	"github.com/complyscan/complyscan/internal/storage"
	"github.com/complyscan/complyscan/internal/workspace"
)

func main() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	log := logger.GetSugaredLogger()
	defer log.Sync()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store db.Store
	if cfg.EnableDB {
		conn, err := sql.Open("postgres", cfg.PostgresConnString())
		if err != nil {
			log.Fatalf("open postgres: %v", err)
		}
		defer conn.Close()
		if err := conn.PingContext(ctx); err != nil {
			log.Fatalf("ping postgres: %v", err)
		}
		pg := db.NewPostgresStore(conn)
		if err := pg.InitSchema(ctx); err != nil {
			log.Fatalf("init schema: %v", err)
		}
		store = pg
	} else {
		log.Warn("Postgres disabled, using in-memory job store")
		store = db.NewMemoryStore()
	}

	var awsCfg aws.Config
	if cfg.EnableQueue || cfg.EnableS3 {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Fatalf("load AWS config: %v", err)
		}
	}

	var jobQueue queue.Queue
	if cfg.EnableQueue {
		jobQueue = queue.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.SQSQueueURL, cfg.VisibilityTimeout)
	} else {
		log.Warn("SQS disabled, using in-memory job queue")
		jobQueue = queue.NewMemoryQueue(cfg.VisibilityTimeout)
	}

	var publisher storage.Publisher
	if cfg.EnableS3 {
		publisher = storage.NewS3Publisher(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.AWSRegion)
	} else {
		log.Warn("S3 disabled, publishing artifacts to local directory")
		local, err := storage.NewLocalPublisher(cfg.ArtifactDir)
		if err != nil {
			log.Fatalf("local publisher: %v", err)
		}
		publisher = local
	}

	workspaces, err := workspace.NewManager(cfg.WorkspaceRoot)
	if err != nil {
		log.Fatalf("workspace manager: %v", err)
	}
	// Reclaim scratch space a previous crashed run may have left behind.
	if err := workspaces.Sweep(); err != nil {
		log.Warnf("workspace sweep: %v", err)
	}

	pipeline := services.NewPipeline(
		store,
		git.NewResolver(),
		workspaces,
		&scan.AuditScanner{Path: cfg.AuditScannerPath, Timeout: cfg.ScannerTimeout},
		&scan.SecretScanner{Path: cfg.SecretScannerPath, Timeout: cfg.ScannerTimeout},
		grade.NewClassifier(cfg.ViralLicenses),
		publisher,
		cfg.CloneMaxConc,
	)

	consumer := &services.Consumer{
		Queue:       jobQueue,
		Store:       store,
		Pipeline:    pipeline,
		Workers:     cfg.Workers,
		MaxAttempts: cfg.MaxAttempts,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer.Run(ctx)
	}()

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewHandler(store, jobQueue).Routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("server shutdown: %v", err)
		}
	}()

	log.Infof("listening on %s with %d workers", cfg.ListenAddr, cfg.Workers)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("http server: %v", err)
	}
	wg.Wait()
	log.Info("shutdown complete")
}
