package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"baddebt_engine/internal/adapters/opener"
	"baddebt_engine/internal/config"
	"baddebt_engine/internal/handlers"
	"baddebt_engine/internal/repository/database"
	"baddebt_engine/internal/repository/markings"
	"baddebt_engine/internal/resolvers"
	"baddebt_engine/internal/server"
	"baddebt_engine/internal/services/baddebt"
	"baddebt_engine/internal/services/export"
	"baddebt_engine/internal/services/idfile"

	"go.uber.org/zap"
)

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := config.LoadSettings()
	logger, err := config.NewLogger(settings.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	setupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := config.Connect(setupCtx, settings)
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer cfg.Close(context.Background())

	if err := cfg.S3.EnsureBucket(setupCtx, settings.S3.Region); err != nil {
		logger.Warn("s3 bucket", zap.Error(err))
	}
	if err := cfg.CheckConnections(setupCtx); err != nil {
		logger.Fatal("connection check failed", zap.Error(err))
	}
	logger.Info("connections ok")

	pool := cfg.Postgres.Pool
	audit := markings.NewStore(cfg.Mongo.Database)

	engine := baddebt.NewService(
		database.NewLoansRepo(pool, settings.LoansTable),
		database.NewPaymentTotalsRepo(pool, settings.PaymentsTable),
		audit,
		logger.Named("baddebt"),
	)

	files := opener.NewCompoundOpener(
		opener.NewHTTPOpener(&http.Client{Timeout: time.Minute}, logger.Named("opener")),
		opener.NewS3Opener(cfg.S3.Client, logger.Named("opener")),
		cfg.S3.Bucket,
	)

	resolver := resolvers.New(
		engine,
		idfile.NewReader(files, logger.Named("idfile")),
		export.NewExporter(cfg.S3.Client, cfg.S3.Bucket, settings.ReportsPrefix, logger.Named("export")),
		audit,
		logger.Named("resolvers"),
	)

	h := handlers.New(resolver, []handlers.HealthCheck{
		{Name: "postgres", Ping: cfg.PingPostgres},
		{Name: "mongo", Ping: cfg.PingMongo},
		{Name: "s3", Ping: cfg.PingS3},
	}, logger.Named("http"))

	srv := server.NewServer(cfg.Port, h, logger)
	if err := srv.Run(runCtx); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}
