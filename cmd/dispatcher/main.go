// Command dispatcher runs the work-dispatch pollers of spec.md §4.4: one
// SKIP LOCKED claim loop per pipeline, publishing durable stream messages
// for the analysis worker to consume.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/beebs-dev/dorch-sub000/pkg/db"
	"github.com/beebs-dev/dorch-sub000/pkg/dispatch"
	"github.com/beebs-dev/dorch-sub000/pkg/kv"
	"github.com/beebs-dev/dorch-sub000/pkg/logging"
	"github.com/beebs-dev/dorch-sub000/pkg/tracing"
)

func main() {
	var databaseURL string
	var redisURL string
	logOptions := logging.NewOptions()
	logOptions.AddFlags(flag.CommandLine)
	tracingOptions := tracing.NewOptions()
	tracingOptions.AddFlags(flag.CommandLine)
	flag.StringVar(&databaseURL, "database-url", "", "Postgres connection string holding the work_items table.")
	flag.StringVar(&redisURL, "redis-url", "redis://localhost:6379/0", "Redis URL the durable streams are published to.")
	flag.Parse()

	logResult, err := logOptions.Apply(flag.CommandLine)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	log := zap.L().With(zap.String("component", "dispatcher"))
	if logResult.Warning != "" {
		log.Info(logResult.Warning)
	}

	if err := tracingOptions.Apply(); err != nil {
		log.Info("tracing initialization failed, using no-op tracer", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, databaseURL)
	if err != nil {
		log.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := kv.New(ctx, redisURL)
	if err != nil {
		log.Fatal("connecting to redis", zap.Error(err))
	}
	defer rdb.Close()

	pipelines := []dispatch.Pipeline{dispatch.PipelineAnalysis, dispatch.PipelineImages}

	var wg sync.WaitGroup
	for _, pipeline := range pipelines {
		poller := dispatch.NewPoller(pool, rdb.Client, pipeline, log.With(zap.String("pipeline", string(pipeline))))
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(ctx)
		}()
	}

	log.Info("dispatcher ready", zap.Int("pipelines", len(pipelines)))

	wg.Wait()
	log.Info("dispatcher shut down")
}
