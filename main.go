package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"keyrepository/internal/config"
	"keyrepository/internal/db"
	"keyrepository/internal/http/handlers"
	appmw "keyrepository/internal/http/middleware"
	"keyrepository/internal/logger"
	"keyrepository/internal/metrics"
	"keyrepository/internal/migrations"
)

const usage = `usage: keyrepository [command]

commands:
  serve                  run the HTTP API (default)
  migrate up             apply pending schema migrations
  migrate down           revert the most recently applied migration
  migrate status         list migrations and when they were applied
  hash-token <token>     print the bcrypt hash to use as APP_API_TOKEN_HASH
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	log, level := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	args := flag.Args()
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
	}

	var err error
	switch cmd {
	case "serve":
		err = serve(cfg, log, level)
	case "migrate":
		sub := ""
		if len(args) > 1 {
			sub = args[1]
		}
		err = migrate(cfg, log, level, sub)
	case "hash-token":
		if len(args) < 2 {
			flag.Usage()
			os.Exit(2)
		}
		var hash string
		hash, err = appmw.HashToken(args[1])
		if err == nil {
			fmt.Println(hash)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal("command failed", zap.String("command", cmd), zap.Error(err))
	}
}

func open(cfg *config.Config, log *zap.Logger, level *zap.AtomicLevel) (*gorm.DB, error) {
	sqlDB, err := db.Connect(cfg, log, level)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return sqlDB, nil
}

func migrate(cfg *config.Config, log *zap.Logger, level *zap.AtomicLevel, sub string) error {
	sqlDB, err := open(cfg, log, level)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(sqlDB) }()

	runner, err := migrations.NewRunner(sqlDB, log.Named("migrate"), migrations.All()...)
	if err != nil {
		return err
	}

	ctx := context.Background()
	switch sub {
	case "up":
		return runner.Up(ctx)
	case "down":
		return runner.Down(ctx)
	case "status":
		status, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range status {
			applied := "pending"
			if s.AppliedAt != nil {
				applied = s.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("%-45s %s\n", s.ID, applied)
		}
		return nil
	default:
		return fmt.Errorf("unknown migrate command %q (want up, down or status)", sub)
	}
}

func serve(cfg *config.Config, log *zap.Logger, level *zap.AtomicLevel) error {
	sqlDB, err := open(cfg, log, level)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(sqlDB) }()

	if cfg.AutoMigrate {
		if err := db.Migrate(context.Background(), sqlDB, log); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	if cfg.APITokenHash == "" {
		log.Warn("APP_API_TOKEN_HASH is empty; /v1 is served without authentication")
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	server := &fasthttp.Server{
		Handler: handlers.NewRouter(sqlDB, cfg, log, prometheus.DefaultGatherer),
		Name:    "keyrepository",
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("keyrepository listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe(cfg.ListenAddr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case s := <-sig:
		log.Info("shutting down", zap.String("signal", s.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.ShutdownWithContext(ctx)
}
