// Command worker runs the analysis pipeline of spec.md §4.4: two durable
// consumer-group loops, one reading top-level WAD work
// (dispatch.PipelineAnalysis.StreamSubject()) through a WadAnalyzer, the
// other reading dependent per-map work (analysis.MapAnalysisStream)
// through a MapAnalyzer. Both streams carry wad_id/map_name in the
// message body rather than in the stream key, so one fixed consumer
// group per stream is enough — no per-key stream-discovery mechanism is
// needed.
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

	"github.com/beebs-dev/dorch-sub000/pkg/analysis"
	"github.com/beebs-dev/dorch-sub000/pkg/dispatch"
	"github.com/beebs-dev/dorch-sub000/pkg/kv"
	"github.com/beebs-dev/dorch-sub000/pkg/lock"
	"github.com/beebs-dev/dorch-sub000/pkg/logging"
	"github.com/beebs-dev/dorch-sub000/pkg/tracing"
)

func main() {
	var redisURL string
	var contentServiceURL string
	var contentServiceAPIKey string
	var openAIAPIKey string
	var openAIModel string
	var consumerName string
	var tokenCap int
	logOptions := logging.NewOptions()
	logOptions.AddFlags(flag.CommandLine)
	tracingOptions := tracing.NewOptions()
	tracingOptions.AddFlags(flag.CommandLine)
	flag.StringVar(&redisURL, "redis-url", "redis://localhost:6379/0", "Redis URL backing the durable stream, lock, and consumer group.")
	flag.StringVar(&contentServiceURL, "content-service-url", "", "Base URL of the content service integration API.")
	flag.StringVar(&contentServiceAPIKey, "content-service-api-key", "", "API key for the content service.")
	flag.StringVar(&openAIAPIKey, "openai-api-key", "", "API key for the model provider.")
	flag.StringVar(&openAIModel, "openai-model", "gpt-4o-mini", "Model name to invoke for analysis.")
	flag.StringVar(&consumerName, "consumer-name", "worker-1", "Consumer group member name.")
	flag.IntVar(&tokenCap, "token-budget", 100000, "Maximum tokens of input to send the model, per spec.md §4.4.")
	flag.Parse()

	logResult, err := logOptions.Apply(flag.CommandLine)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	log := zap.L().With(zap.String("component", "worker"))
	if logResult.Warning != "" {
		log.Info(logResult.Warning)
	}

	if err := tracingOptions.Apply(); err != nil {
		log.Info("tracing initialization failed, using no-op tracer", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := kv.New(ctx, redisURL)
	if err != nil {
		log.Fatal("connecting to redis", zap.Error(err))
	}
	defer rdb.Close()

	encoder, err := analysis.NewEncoder()
	if err != nil {
		log.Fatal("loading token encoder", zap.Error(err))
	}

	content := analysis.NewHTTPContentService(contentServiceURL, contentServiceAPIKey)
	publisher := analysis.NewRedisPublisher(rdb.Client)
	locker := lock.New(rdb.Client)
	model := analysis.NewModelClient(openAIAPIKey, openAIModel)
	wadAnalyzer := analysis.NewWadAnalyzer(content, publisher, locker)
	mapAnalyzer := analysis.NewMapAnalyzer(content, locker)

	wadWorker := analysis.NewWorker(
		rdb.Client,
		dispatch.PipelineAnalysis.StreamSubject(),
		"analysis-workers",
		consumerName,
		wadAnalyzer,
		encoder,
		model,
		locker,
		tokenCap,
		log.With(zap.String("loop", "wad")),
	)
	mapWorker := analysis.NewWorker(
		rdb.Client,
		analysis.MapAnalysisStream,
		"analysis-map-workers",
		consumerName,
		mapAnalyzer,
		encoder,
		model,
		locker,
		tokenCap,
		log.With(zap.String("loop", "map")),
	)

	if err := wadWorker.EnsureGroup(ctx); err != nil {
		log.Fatal("ensuring wad consumer group", zap.Error(err))
	}
	if err := mapWorker.EnsureGroup(ctx); err != nil {
		log.Fatal("ensuring map consumer group", zap.Error(err))
	}

	log.Info("worker ready", zap.String("consumer", consumerName))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		wadWorker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		mapWorker.Run(ctx)
	}()
	wg.Wait()

	log.Info("worker shut down")
}
