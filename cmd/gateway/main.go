// Command gateway runs the WebSocket gateway of spec.md §4.5/§6: the
// two-phase handshake HTTP endpoint, the authenticated WS upgrade, and
// the per-connection session proxy.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/beebs-dev/dorch-sub000/pkg/kv"
	"github.com/beebs-dev/dorch-sub000/pkg/logging"
	"github.com/beebs-dev/dorch-sub000/pkg/party"
	"github.com/beebs-dev/dorch-sub000/pkg/ratelimit"
	"github.com/beebs-dev/dorch-sub000/pkg/tracing"
	"github.com/beebs-dev/dorch-sub000/pkg/wsgateway"
)

// redisBroker adapts the shared Redis client to wsgateway.Broker by
// publishing/subscribing via Redis Pub/Sub, the transient-message
// transport spec.md §4.5 describes for per-user and broadcast channels.
type redisBroker struct {
	rdb *kv.Client
}

func (b *redisBroker) Subscribe(ctx context.Context, subject string) (<-chan []byte, func(), error) {
	sub := b.rdb.Subscribe(ctx, subject)
	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
				}
			}
		}
	}()
	return out, func() { _ = sub.Close() }, nil
}

func (b *redisBroker) Publish(ctx context.Context, subject string, payload []byte) error {
	return b.rdb.Publish(ctx, subject, payload).Err()
}

func main() {
	var bindAddr string
	var redisURL string
	var jwksURL string
	var issuer string
	var audience string
	logOptions := logging.NewOptions()
	logOptions.AddFlags(flag.CommandLine)
	tracingOptions := tracing.NewOptions()
	tracingOptions.AddFlags(flag.CommandLine)
	flag.StringVar(&bindAddr, "bind-address", ":8443", "HTTP address the gateway listens on.")
	flag.StringVar(&redisURL, "redis-url", "redis://localhost:6379/0", "Redis URL backing handshakes, rate limiting, and party state.")
	flag.StringVar(&jwksURL, "jwks-url", "", "JWKS endpoint used to validate access tokens.")
	flag.StringVar(&issuer, "issuer", "", "Expected access token issuer.")
	flag.StringVar(&audience, "audience", "", "Expected access token audience.")
	flag.Parse()

	logResult, err := logOptions.Apply(flag.CommandLine)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	log := zap.L().With(zap.String("component", "gateway"))
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

	limiter := ratelimit.New(rdb.Client, ratelimit.Limits{
		Short:       20,
		ShortWindow: 10 * time.Second,
		Long:        600,
		LongWindow:  time.Hour,
		MaxListSize: 512,
	})
	_ = party.New(rdb.Client) // party state is consumed by the inbound-message handlers wired via Session.SetParty

	cfg := wsgateway.Config{
		Handshake: wsgateway.NewHandshakeStore(rdb.Client),
		JWKS:      wsgateway.NewJWKSCache(jwksURL),
		Broker:    &redisBroker{rdb: rdb},
		Limiter:   limiter,
		Issuer:    issuer,
		Audience:  audience,
		Log:       log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/auth", wsgateway.AuthHandler(cfg, resolveUserIDFromRequest))
	mux.HandleFunc("/ws", wsgateway.UpgradeHandler(cfg))

	server := &http.Server{Addr: bindAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("gateway ready", zap.String("bind_address", bindAddr))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway stopped unexpectedly", zap.Error(err))
	}
	log.Info("gateway shut down")
}

// resolveUserIDFromRequest is a placeholder for the bearer-token auth
// middleware spec.md §1 treats as an external collaborator: it reads the
// already-authenticated user id an upstream layer is expected to have
// attached to the request.
func resolveUserIDFromRequest(r *http.Request) (string, bool) {
	userID := r.Header.Get("X-Authenticated-User-Id")
	if userID == "" {
		return "", false
	}
	return userID, true
}
