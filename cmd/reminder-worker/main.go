package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/careslot/booking/internal/booking"
	"github.com/careslot/booking/internal/config"
	"github.com/careslot/booking/internal/db"
	"github.com/careslot/booking/internal/notify"
	redisclient "github.com/careslot/booking/internal/redis"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("reminder-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.WebhookURL == "" {
		log.Fatal("WEBHOOK_URL is required for the reminder worker")
	}

	log.Printf("running reminder worker in env=%s interval=%s lead=%s", cfg.Env, cfg.WorkerInterval, cfg.ReminderLead)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()

	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL)
	notifier := notify.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookTimeout)
	svc := booking.NewService(repo, locker, notifier, cfg)

	// Run once at startup
	runOnce(rootCtx, svc)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := svc.SendDueReminders(runCtx, start); err != nil {
		log.Printf("reminder run error: %v", err)
		return
	}
	log.Printf("reminder run complete in %s", time.Since(start))
}
