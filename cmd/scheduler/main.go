package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/spsc/goldledger/internal/config"
	"github.com/spsc/goldledger/internal/domain"
	"github.com/spsc/goldledger/internal/store"
)

func main() {
	log.Println("Starting ledger scheduler...")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	kv := store.NewRedisKV(redisClient)

	// Initialize cron scheduler
	c := cron.New(cron.WithSeconds(), cron.WithLocation(cfg.GetSchedulerLocation()))

	// Schedule tasks
	setupCronJobs(c, cfg, kv)

	// Start the scheduler
	c.Start()
	log.Println("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down scheduler...")
	c.Stop()
	log.Println("Scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, kv store.KV) {
	// Daily scan reporting entries whose due date has passed
	_, err := c.AddFunc(cfg.Scheduler.DueScanSpec, func() {
		log.Println("Running due-entry scan...")
		scanDueEntries(kv)
	})
	if err != nil {
		log.Printf("Error scheduling due-entry scan: %v", err)
	}

	log.Println("Cron jobs scheduled successfully")
}

// scanDueEntries snapshots the ledger and logs every entry past its due date
// along with the money still pending on it.
func scanDueEntries(kv store.KV) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap, err := kv.Snapshot(ctx, store.CollectionEntries)
	if err != nil {
		log.Printf("Due-entry scan failed: %v", err)
		return
	}

	entries := make([]domain.LoanEntry, 0, len(snap.Keys))
	for _, key := range snap.Keys {
		var entry domain.LoanEntry
		if err := json.Unmarshal(snap.Records[key], &entry); err != nil {
			log.Printf("Skipping undecodable entry %s: %v", key, err)
			continue
		}
		entries = append(entries, entry)
	}

	due := domain.DueBefore(entries, time.Now())
	if len(due) == 0 {
		log.Println("No entries past their due date")
		return
	}

	for _, e := range due {
		log.Printf("Due: application %s, borrower %s, due date %s, pending %s",
			e.ApplicationNumber, e.Username, e.EndDate, e.PendingMoney.String())
	}
	log.Printf("Due-entry scan finished: %d of %d entries past due", len(due), len(entries))
}
