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

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/spsc/goldledger/internal/config"
	"github.com/spsc/goldledger/internal/handler"
	"github.com/spsc/goldledger/internal/service"
	"github.com/spsc/goldledger/internal/store"
	"github.com/spsc/goldledger/pkg/response"
)

func main() {
	// Load configuration
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := store.EnsureBlobSchema(context.Background(), db); err != nil {
		log.Fatalf("Failed to ensure blob schema: %v", err)
	}

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Initialize store adapter
	kv := store.NewRedisKV(redisClient)
	blobs := store.NewBlobStore(db, cfg.Server.BaseURL)

	// Initialize service with its read-through entry cache
	cache := service.NewEntryCache()
	ledgerService := service.NewLedgerService(kv, blobs, cache)

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()

	unsubscribe, err := ledgerService.Watch(watchCtx)
	if err != nil {
		log.Fatalf("Failed to subscribe to entries: %v", err)
	}
	defer unsubscribe()

	ledgerHandler := handler.NewLedgerHandler(ledgerService)
	postHandler := handler.NewPostHandler(ledgerService)
	fileHandler := handler.NewFileHandler(blobs)
	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.GetHealthTimeout())

	// Setup routes
	router := setupRoutes(ledgerHandler, postHandler, fileHandler, healthHandler)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(
	ledgerHandler *handler.LedgerHandler,
	postHandler *handler.PostHandler,
	fileHandler *handler.FileHandler,
	healthHandler *handler.HealthHandler,
) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware)
	router.Use(response.CORSMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// Uploaded images
	router.HandleFunc("/files/{id}", fileHandler.ServeFile).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/entries", ledgerHandler.CreateEntry).Methods("POST")
	api.HandleFunc("/entries", ledgerHandler.ListEntries).Methods("GET")
	api.HandleFunc("/entries/due", ledgerHandler.DueEntries).Methods("GET")
	api.HandleFunc("/entries/{applicationNumber}", ledgerHandler.GetEntry).Methods("GET")
	api.HandleFunc("/entries/{applicationNumber}", ledgerHandler.UpdateEntry).Methods("PUT")
	api.HandleFunc("/entries/{applicationNumber}", ledgerHandler.DeleteEntry).Methods("DELETE")
	api.HandleFunc("/entries/{applicationNumber}/payments", ledgerHandler.RecordPayment).Methods("POST")
	api.HandleFunc("/entries/{applicationNumber}/payments/{index}", ledgerHandler.EditPayment).Methods("PUT")

	api.HandleFunc("/posts", postHandler.CreatePost).Methods("POST")
	api.HandleFunc("/posts", postHandler.ListPosts).Methods("GET")
	api.HandleFunc("/posts/{key}", postHandler.DeletePost).Methods("DELETE")

	return router
}
