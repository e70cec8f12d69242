package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/queue"
	"rollcall/internal/report"
	"rollcall/internal/roster"
	"rollcall/internal/store"
)

// Worker consumes report jobs, renders the monthly workbook, and records the
// job result.
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

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "rollcall:reports")
	}

	rules := attendance.Rules{
		WorkStartHour:   cfg.WorkStartHour,
		WorkStartMinute: cfg.WorkStartMinute,
		LateThreshold:   time.Duration(cfg.LateThresholdMinutes) * time.Minute,
		Loc:             cfg.Location(),
	}

	attRepo := attendance.NewRepository(db.Client)
	rosterRepo := roster.NewRepository(db.Client)
	agg := report.NewAggregator(attRepo, rosterRepo, rules)
	exporter := report.NewExporter()

	if err := os.MkdirAll(cfg.ReportOutputDir, 0o755); err != nil {
		log.Fatalf("create report dir failed: %v", err)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for report jobs...")
	for msg := range messages {
		if msg.Type != "report" {
			continue
		}

		id := string(msg.Body)
		log.Printf("processing report job %s", id)

		job, err := attRepo.GetReportJob(ctx, id)
		if err != nil {
			log.Printf("fetch job %s failed: %v", id, err)
			continue
		}
		if job == nil {
			log.Printf("job %s not found, skipping", id)
			continue
		}

		path, err := renderJob(ctx, agg, exporter, cfg.ReportOutputDir, job)
		if err != nil {
			log.Printf("render job %s failed: %v", id, err)
			_ = attRepo.UpdateReportJob(ctx, id, "failed", nil)
			continue
		}

		_ = attRepo.UpdateReportJob(ctx, id, "done", &path)
		log.Printf("job %s done: %s", id, path)
	}

	log.Println("worker stopped")
}

func renderJob(ctx context.Context, agg *report.Aggregator, exporter *report.Exporter, dir string, job *attendance.ReportJob) (string, error) {
	matrix, err := agg.Monthly(ctx, job.Year, time.Month(job.Month))
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("attendance-%04d-%02d-%s.xlsx", job.Year, job.Month, job.ID))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := exporter.Render(matrix, f); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
