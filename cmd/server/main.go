package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"appointment-chatbot-api/internal/chatbot"
	"appointment-chatbot-api/internal/config"
	"appointment-chatbot-api/internal/handler"
	"appointment-chatbot-api/internal/middleware"
	"appointment-chatbot-api/internal/store/postgres"
	"appointment-chatbot-api/internal/telemetry"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	shutdownTelemetry := telemetry.Setup("appointment-chatbot-api")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	// database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	log.Println("connected to postgres")

	// run migrations
	if migration, err := os.ReadFile("db/migrations/001_init.sql"); err != nil {
		log.Printf("migration file not found, skipping: %v", err)
	} else if _, err := pool.Exec(context.Background(), string(migration)); err != nil {
		log.Printf("migration warning: %v", err)
	} else {
		log.Println("migration applied")
	}

	st := postgres.New(pool)
	nlu := chatbot.NewHTTPCollaborator(cfg.ChatbotServiceURL, cfg.RelayTimeout)
	chat := chatbot.New(st, st, nlu, chatbot.Config{
		JWTSecret:    cfg.JWTSecret,
		SessionTTL:   cfg.ChatSessionTTL,
		ChatTokenTTL: cfg.ChatTokenTTL,
		RelayTimeout: cfg.RelayTimeout,
	})

	rl := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	h := handler.New(st, st, chat, cfg.JWTSecret, cfg.AccessTokenTTL, rl)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(middleware.Logging(h.Routes()), "appointment-chatbot-api"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 45 * time.Second, // relay calls can hold a request up to 30s
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
