package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ariefcatur/go-kiosk/internal/analytics"
	"github.com/ariefcatur/go-kiosk/internal/apiclient"
	"github.com/ariefcatur/go-kiosk/internal/catalog"
	"github.com/ariefcatur/go-kiosk/internal/config"
	"github.com/ariefcatur/go-kiosk/internal/httpx"
	kafkax "github.com/ariefcatur/go-kiosk/internal/kafka"
	"github.com/ariefcatur/go-kiosk/internal/kiosk"
	"github.com/ariefcatur/go-kiosk/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := apiclient.New(cfg.APIBaseURL, cfg.RequestTimeout)
	log.Printf("commerce api at %s", api.BaseURL())

	// Redis (optional): shared catalog cache
	var cache catalog.Cache
	if cfg.RedisAddr != "" {
		rdb, err := redisx.New(ctx, cfg.RedisAddr)
		if err != nil {
			log.Printf("redis disabled: %v", err)
		} else {
			defer rdb.Close()
			cache = catalog.NewRedisCache(rdb, redisx.KeyCatalog, redisx.TTLCatalog)
		}
	}

	// Kafka (optional): session and payment events
	var sessionPub, paymentPub kiosk.Publisher
	var producers []*kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		ps := kafkax.NewProducer(cfg.KafkaBrokers, kiosk.TopicSession, 1024)
		pp := kafkax.NewProducer(cfg.KafkaBrokers, kiosk.TopicPaymentConfirmed, 1024)
		ps.Start(ctx)
		pp.Start(ctx)
		sessionPub, paymentPub = ps, pp
		producers = append(producers, ps, pp)
	}

	session := kiosk.NewSession(kiosk.Deps{
		Gateway:     api,
		Catalog:     catalog.NewService(api, cache),
		Events:      kiosk.NewEmitter(sessionPub, paymentPub, cfg.ServiceName, cfg.KioskID),
		IdleTimeout: cfg.IdleTimeout,
		Dwell:       cfg.SuccessDwell,
	})

	router := httpx.NewRouter(cfg.AllowedOrigins)
	(&httpx.KioskHandler{Session: session, Receipts: api, Timeout: cfg.RequestTimeout}).Register(router)
	(&httpx.AdminHandler{
		API:     api,
		Gate:    analytics.NewGate(cfg.AnalyticsPIN, cfg.AnalyticsPINHash, cfg.JWTSecret, cfg.AdminTokenTTL),
		Timeout: cfg.RequestTimeout,
	}).Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("HTTP listening at %s (kiosk %s)", cfg.HTTPAddr, cfg.KioskID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	session.Close()
	for _, p := range producers {
		p.Close()
	}
	for _, p := range producers {
		p.WaitClosed()
	}
	cancel()
}
