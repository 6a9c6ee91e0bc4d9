// Command srpserver runs the UDP SRP-6a authentication server of
// spec.md §4.1/§4.2, wired against the shared Redis-backed user store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/beebs-dev/dorch-sub000/pkg/kv"
	"github.com/beebs-dev/dorch-sub000/pkg/logging"
	"github.com/beebs-dev/dorch-sub000/pkg/srp"
	"github.com/beebs-dev/dorch-sub000/pkg/tracing"
)

func main() {
	var bindAddr string
	var redisURL string
	logOptions := logging.NewOptions()
	logOptions.AddFlags(flag.CommandLine)
	tracingOptions := tracing.NewOptions()
	tracingOptions.AddFlags(flag.CommandLine)
	flag.StringVar(&bindAddr, "bind-address", ":9001", "UDP address the SRP server listens on.")
	flag.StringVar(&redisURL, "redis-url", "redis://localhost:6379/0", "Redis URL backing the user store.")
	flag.Parse()

	logResult, err := logOptions.Apply(flag.CommandLine)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	log := zap.L().With(zap.String("component", "srpserver"))
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

	users := srp.NewRedisUserStore(rdb.Client)

	server, err := srp.NewServer(bindAddr, users, log)
	if err != nil {
		log.Fatal("starting srp server", zap.Error(err))
	}
	defer server.Close()

	log.Info("srp server ready", zap.String("bind_address", bindAddr))

	if err := server.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("srp server stopped unexpectedly", zap.Error(err))
	}
	log.Info("srp server shut down")
}
