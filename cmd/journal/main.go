package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-kiosk/internal/config"
	"github.com/ariefcatur/go-kiosk/internal/httpx"
	"github.com/ariefcatur/go-kiosk/internal/journal"
	kafkax "github.com/ariefcatur/go-kiosk/internal/kafka"
	"github.com/ariefcatur/go-kiosk/internal/kiosk"
	"github.com/ariefcatur/go-kiosk/internal/postgres"
	"github.com/ariefcatur/go-kiosk/internal/redisx"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 1 {
		return 1
	}
	return i
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.PostgresDSN == "" || len(cfg.KafkaBrokers) == 0 {
		log.Fatal("journal needs POSTGRES_DSN and KAFKA_BROKERS")
	}
	workers := mustAtoi(os.Getenv("JOURNAL_WORKERS"), "4")

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, workers)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	repo := &journal.Repo{DB: db}
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}

	// Redis dedup is optional; the order_id conflict clause still holds
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = redisx.New(ctx, cfg.RedisAddr)
		if err != nil {
			log.Printf("redis disabled: %v", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	svc := &journal.Service{
		Repo:        repo,
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-journal",
	}

	group := getenv("JOURNAL_GROUP", "kiosk-journal")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, kiosk.TopicPaymentConfirmed, workers)

	go func() {
		log.Printf("journal consumer started: group=%s topic=%s workers=%d", group, kiosk.TopicPaymentConfirmed, workers)
		if err := cons.Start(ctx, svc.HandlePaymentConfirmed); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	router := httpx.NewRouter(cfg.AllowedOrigins)
	(&httpx.JournalHandler{Repo: repo}).Register(router)
	srv := &http.Server{
		Addr:              getenv("JOURNAL_HTTP_ADDR", ":8082"),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("journal HTTP listening at %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("listen: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down journal...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	cancel()
	// let in-flight handlers commit
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
