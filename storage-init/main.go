package main

import (
	"context"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/lokeshjavvadi/Smart-taskhub-React/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}

	ctx := context.Background()
	if err := storage.CreateTables(ctx, connStr,
		envOr("TASKS_TABLE", "tasks"),
		envOr("PROJECTS_TABLE", "projects"),
		envOr("MEMBERSHIPS_TABLE", "memberships"),
	); err != nil {
		log.Fatalf("create tables: %v", err)
	}
	if err := storage.CreateQueues(ctx, connStr, os.Getenv("TASK_EVENTS_QUEUE")); err != nil {
		log.Fatalf("create queues: %v", err)
	}

	log.Info("storage init complete")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
