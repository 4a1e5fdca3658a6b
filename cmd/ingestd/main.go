package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"go-ingest-pipeline/internal/api"
	"go-ingest-pipeline/internal/api/handler"
	"go-ingest-pipeline/internal/model"
	"go-ingest-pipeline/internal/pipeline"
	"go-ingest-pipeline/internal/queue"
	"go-ingest-pipeline/internal/store"
	"go-ingest-pipeline/pkg/router"
)

func main() {
	app := &cli.App{
		Name:  "ingestd",
		Usage: "asynchronous data ingestion and transformation service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				Usage:   "HTTP listen address",
				EnvVars: []string{"INGEST_ADDR"},
			},
			&cli.StringFlag{
				Name:    "db",
				Value:   "ingest.db",
				Usage:   "path to the SQLite database",
				EnvVars: []string{"INGEST_DB"},
			},
			&cli.IntFlag{
				Name:    "workers",
				Value:   4,
				Usage:   "number of concurrent job workers",
				EnvVars: []string{"INGEST_WORKERS"},
			},
			&cli.IntFlag{
				Name:    "queue-size",
				Value:   100,
				Usage:   "pending job queue depth",
				EnvVars: []string{"INGEST_QUEUE_SIZE"},
			},
			&cli.IntFlag{
				Name:    "source-concurrency",
				Value:   4,
				Usage:   "concurrent source fetches per job",
				EnvVars: []string{"INGEST_SOURCE_CONCURRENCY"},
			},
			&cli.IntFlag{
				Name:    "max-attempts",
				Value:   3,
				Usage:   "fetch attempts per source before giving up",
				EnvVars: []string{"INGEST_MAX_ATTEMPTS"},
			},
			&cli.DurationFlag{
				Name:    "backoff-base",
				Value:   500 * time.Millisecond,
				Usage:   "base delay for fetch retry backoff",
				EnvVars: []string{"INGEST_BACKOFF_BASE"},
			},
			&cli.DurationFlag{
				Name:    "fetch-timeout",
				Value:   30 * time.Second,
				Usage:   "per-request source fetch timeout",
				EnvVars: []string{"INGEST_FETCH_TIMEOUT"},
			},
			&cli.IntFlag{
				Name:    "max-page-size",
				Value:   pipeline.DefaultMaxPageSize,
				Usage:   "maximum result page size",
				EnvVars: []string{"INGEST_MAX_PAGE_SIZE"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	st, err := store.Open(c.String("db"))
	if err != nil {
		return err
	}
	defer st.Close()

	q := queue.NewMemoryQueue(c.Int("queue-size"))
	fetcher := pipeline.NewHTTPFetcher(c.Duration("fetch-timeout"))

	dispatcher := pipeline.NewDispatcher(st, q, fetcher, pipeline.DispatcherConfig{
		Workers:           c.Int("workers"),
		SourceConcurrency: c.Int("source-concurrency"),
		Retry: model.RetryPolicy{
			MaxAttempts: c.Int("max-attempts"),
			BaseDelay:   c.Duration("backoff-base"),
		},
	})
	dispatcher.Start(context.Background())

	manager := pipeline.NewManager(st, q, c.Int("max-page-size"))

	r := router.New()
	api.RegisterRoutes(r, handler.New(manager))
	r.Start(c.String("addr"))
	return nil
}
