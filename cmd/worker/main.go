package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classtrack/internal/attendance"
	"classtrack/internal/config"
	"classtrack/internal/queue"
	"classtrack/internal/store"
)

// Worker consumes check-in audit messages and maintains per-class daily
// tallies in redis for dashboard reads.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classtrack:attendance")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != "attendance.marked" {
			continue
		}

		var rec attendance.Record
		if err := json.Unmarshal(msg.Body, &rec); err != nil {
			log.Printf("bad message body: %v", err)
			continue
		}

		key := "classtrack:tally:" + rec.ClassID + ":" + rec.Day
		if err := redisClient.Client.Incr(ctx, key).Err(); err != nil {
			log.Printf("tally incr failed for %s: %v", key, err)
			continue
		}
		// Tallies are a dashboard convenience; the DB stays authoritative.
		_ = redisClient.Client.Expire(ctx, key, 48*time.Hour).Err()

		log.Printf("recorded check-in: class=%s student=%s day=%s", rec.ClassID, rec.StudentID, rec.Day)
	}

	log.Println("worker stopped")
}
