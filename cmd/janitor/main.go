package main

import (
	"context"
	"errors"
	"log"
	"log/slog"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/mylocation/internal/adapters/postgres"
	"github.com/samirrijal/mylocation/internal/pkg/config"
	"github.com/samirrijal/mylocation/internal/pkg/logging"
	"github.com/samirrijal/mylocation/internal/workflows"
)

const retentionWorkflowID = "fix-retention"

func main() {
	cfg, err := config.Load("mylocation-janitor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, workflows.RetentionTaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.RetentionWorkflow)
	w.RegisterActivity(&workflows.RetentionActivities{
		Fixes: postgres.NewFixRepo(db),
	})

	// One cron workflow per namespace; later janitors find it running.
	_, err = c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           retentionWorkflowID,
		TaskQueue:    workflows.RetentionTaskQueue,
		CronSchedule: cfg.Retention.Schedule,

		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.RetentionWorkflow, workflows.RetentionInput{MaxAge: cfg.Retention.MaxAge})
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	switch {
	case err == nil:
		slog.Info("retention workflow scheduled", "schedule", cfg.Retention.Schedule, "max_age", cfg.Retention.MaxAge)
	case errors.As(err, &started):
		slog.Info("retention workflow already scheduled")
	default:
		log.Fatalf("schedule retention: %v", err)
	}

	slog.Info("janitor worker started", "queue", workflows.RetentionTaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
