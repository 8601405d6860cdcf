package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/canopysoft/atrium/pkg/audit"
	"github.com/canopysoft/atrium/pkg/session"
)

var (
	dbURL           = flag.String("db-url", getEnv("ATRIUM_POSTGRES_URL", "postgres://localhost/atrium?sslmode=disable"), "PostgreSQL connection URL")
	redisURL        = flag.String("redis-url", getEnv("ATRIUM_REDIS_URL", "redis://localhost:6379"), "Redis connection URL")
	retentionDays   = flag.Int("audit-retention-days", 90, "Days of audit events to keep")
	purgeSchedule   = flag.String("purge-schedule", "30 2 * * *", "Cron schedule for audit retention purge (default: 02:30 UTC)")
	sessionSchedule = flag.String("session-schedule", "*/5 * * * *", "Cron schedule for session gauge resync (default: every 5 minutes)")
	runOnce         = flag.Bool("run-once", false, "Run maintenance once and exit")
)

func main() {
	flag.Parse()

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	auditLog, err := audit.NewDBLogger(db)
	if err != nil {
		log.Fatalf("Failed to open audit log: %v", err)
	}

	sessions, err := session.NewStore(session.Config{RedisURL: *redisURL}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer sessions.Close()

	if *runOnce {
		if err := purgeAudit(auditLog, *retentionDays); err != nil {
			log.Fatalf("Audit purge failed: %v", err)
		}
		if err := syncSessions(sessions); err != nil {
			log.Fatalf("Session sync failed: %v", err)
		}
		log.Println("Maintenance completed successfully")
		return
	}

	c := cron.New()

	_, err = c.AddFunc(*purgeSchedule, func() {
		if err := purgeAudit(auditLog, *retentionDays); err != nil {
			log.Printf("Audit purge failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule audit purge: %v", err)
	}

	_, err = c.AddFunc(*sessionSchedule, func() {
		if err := syncSessions(sessions); err != nil {
			log.Printf("Session sync failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule session sync: %v", err)
	}

	c.Start()
	log.Println("Atrium maintenance started")
	log.Printf("Audit purge schedule: %s (retaining %d days)", *purgeSchedule, *retentionDays)
	log.Printf("Session sync schedule: %s", *sessionSchedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutting down gracefully...")

	ctx := c.Stop()
	<-ctx.Done()

	log.Println("Maintenance stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func purgeAudit(auditLog *audit.DBLogger, days int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	removed, err := auditLog.Purge(ctx, cutoff)
	if err != nil {
		return err
	}
	log.Printf("Purged %d audit events older than %s", removed, cutoff.Format("2006-01-02"))
	return nil
}

func syncSessions(sessions *session.Store) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := sessions.SyncActiveGauge(ctx)
	if err != nil {
		return err
	}
	log.Printf("Active sessions: %d", count)
	return nil
}
