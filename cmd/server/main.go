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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/playpool/snooker/internal/accounts"
	"github.com/playpool/snooker/internal/admin"
	"github.com/playpool/snooker/internal/api"
	"github.com/playpool/snooker/internal/config"
	"github.com/playpool/snooker/internal/database"
	"github.com/playpool/snooker/internal/game"
	"github.com/playpool/snooker/internal/migrations"
	"github.com/playpool/snooker/internal/redis"
	"github.com/playpool/snooker/internal/sms"
	"github.com/playpool/snooker/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("[MIGRATE] Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL, migrations.DefaultDir); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	// Without redis, tables live in process memory and events go straight to
	// the local hub.
	var tables game.TableStore
	var events game.Publisher
	if rdb != nil {
		defer rdb.Close()
		tables = game.NewRedisTableStore(rdb)
		events = ws.NewRedisPublisher(rdb)
		ws.StartEventSubscriber(ctx, rdb, hub)
		log.Println("[TABLE] Using redis table store")
	} else {
		tables = game.NewMemoryTableStore()
		events = hub
		log.Println("[TABLE] REDIS_URL not set, using in-memory table store (single instance only)")
	}

	if smsClient := sms.NewClient(cfg, rdb); smsClient != nil {
		events = game.Publishers{events, smsClient}
		log.Printf("[SMS] DMark SMS client initialized (base=%s)", cfg.SMSBaseURL)
	} else {
		log.Printf("[SMS] SMS is not configured (SMS_SERVICE_BASE_URL/SMS_SERVICE_USERNAME missing)")
	}

	adminStore := admin.NewStore(db)
	ledger := accounts.NewLedger(db)
	plays := game.NewPlayStore(db)
	mgr := game.NewManager(tables, adminStore, ledger, plays, events, cfg)

	game.StartExpiryWorker(ctx, mgr, time.Duration(cfg.ExpiryPollSeconds)*time.Second)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	api.SetupRoutes(router, api.Deps{
		DB:      db,
		Manager: mgr,
		Admin:   adminStore,
		Ledger:  ledger,
		Plays:   plays,
		Hub:     hub,
	}, cfg)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting snooker server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	stop()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
