// Command meshproxy runs the UDP↔mesh proxy of spec.md §4.3: a
// single-threaded-cooperative sidecar inside a game pod that joins one
// mesh room as identity "server" and bridges it to the pod's local UDP
// game server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/beebs-dev/dorch-sub000/pkg/logging"
	"github.com/beebs-dev/dorch-sub000/pkg/meshproxy"
	"github.com/beebs-dev/dorch-sub000/pkg/tracing"
)

func main() {
	var signalingURL string
	var roomID string
	var gamePort int
	logOptions := logging.NewOptions()
	logOptions.AddFlags(flag.CommandLine)
	tracingOptions := tracing.NewOptions()
	tracingOptions.AddFlags(flag.CommandLine)
	flag.StringVar(&signalingURL, "signaling-url", "", "Websocket URL of the mesh room's signaling server.")
	flag.StringVar(&roomID, "room-id", "", "Mesh room id to join (the game id).")
	flag.IntVar(&gamePort, "game-port", 7777, "Local UDP port the game server listens on.")
	flag.Parse()

	logResult, err := logOptions.Apply(flag.CommandLine)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	log := zap.L().With(zap.String("component", "meshproxy"))
	if logResult.Warning != "" {
		log.Info(logResult.Warning)
	}

	if err := tracingOptions.Apply(); err != nil {
		log.Info("tracing initialization failed, using no-op tracer", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, room, err := meshproxy.Dial(ctx, signalingURL, roomID, log)
	if err != nil {
		log.Fatal("joining mesh room", zap.Error(err))
	}

	proxy := meshproxy.NewProxy(room, gamePort, log)

	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("signaling client stopped unexpectedly", zap.Error(err))
		}
	}()

	log.Info("meshproxy ready", zap.String("room_id", roomID), zap.Int("game_port", gamePort))

	if err := proxy.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("proxy stopped unexpectedly", zap.Error(err))
	}
	log.Info("meshproxy shut down")
}
