package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/beebs-dev/dorch-sub000/pkg/errkind"
	"github.com/beebs-dev/dorch-sub000/pkg/lock"
)

// ackWait is the durable-consumer ack-wait of spec.md §4.4/§5: messages
// not ack'd within this window become eligible for XCLAIM by the
// periodic claimer.
const ackWait = 60 * time.Second

// backoffSchedule indexes retry delay by consecutive-failure count,
// per spec.md §4.4 ("sleep per the exponential backoff schedule,
// indexed by a failure counter").
var backoffSchedule = []time.Duration{
	1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second,
}

func backoffFor(failures int) time.Duration {
	if failures >= len(backoffSchedule) {
		return backoffSchedule[len(backoffSchedule)-1]
	}
	if failures < 0 {
		failures = 0
	}
	return backoffSchedule[failures]
}

// Worker consumes a durable Redis Stream consumer group, classifies each
// message via an Analyzer, invokes the model, and posts results, per the
// pipeline described in spec.md §4.4.
type Worker struct {
	rdb      *redis.Client
	stream   string
	group    string
	consumer string
	analyzer Analyzer
	encoder  Encoder
	model    *ModelClient
	locker   *lock.Locker
	tokenCap int
	log      *zap.Logger

	failures map[string]int
}

func NewWorker(rdb *redis.Client, stream, group, consumer string, analyzer Analyzer, encoder Encoder, model *ModelClient, locker *lock.Locker, tokenCap int, log *zap.Logger) *Worker {
	return &Worker{
		rdb:      rdb,
		stream:   stream,
		group:    group,
		consumer: consumer,
		analyzer: analyzer,
		encoder:  encoder,
		model:    model,
		locker:   locker,
		tokenCap: tokenCap,
		log:      log,
		failures: make(map[string]int),
	}
}

// EnsureGroup creates the consumer group if it does not already exist.
func (w *Worker) EnsureGroup(ctx context.Context) error {
	err := w.rdb.XGroupCreateMkStream(ctx, w.stream, w.group, "0").Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		// BUSYGROUP means the group already exists, which is fine.
		if isBusyGroupErr(err) {
			return nil
		}
		return fmt.Errorf("creating consumer group %s/%s: %w", w.stream, w.group, err)
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && (err.Error() == "BUSYGROUP Consumer Group name already exists")
}

// Run reads messages until ctx is canceled. A background goroutine claims
// messages abandoned past ackWait.
func (w *Worker) Run(ctx context.Context) {
	go w.runClaimer(ctx)

	for {
		if ctx.Err() != nil {
			return
		}
		streams, err := w.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.group,
			Consumer: w.consumer,
			Streams:  []string{w.stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			w.log.Error("analysis worker: read failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				w.handle(ctx, msg)
			}
		}
	}
}

func (w *Worker) runClaimer(ctx context.Context) {
	ticker := time.NewTicker(ackWait)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			claimed, _, err := w.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   w.stream,
				Group:    w.group,
				Consumer: w.consumer,
				MinIdle:  ackWait,
				Start:    "0",
				Count:    10,
			}).Result()
			if err != nil {
				w.log.Warn("analysis worker: claim sweep failed", zap.Error(err))
				continue
			}
			for _, msg := range claimed {
				w.handle(ctx, msg)
			}
		}
	}
}

func payloadBytes(values map[string]interface{}) ([]byte, error) {
	return json.Marshal(values)
}

func (w *Worker) handle(ctx context.Context, msg redis.XMessage) {
	payload, err := payloadBytes(msg.Values)
	if err != nil {
		w.ack(ctx, msg.ID)
		return
	}

	decision, err := w.analyzer.DeriveInput(ctx, w.stream, payload)
	if err != nil {
		if isPoisoned(err) {
			w.log.Warn("analysis worker: poisoned input, discarding", zap.String("id", msg.ID), zap.Error(err))
			w.ack(ctx, msg.ID)
			return
		}
		w.nakWithBackoff(ctx, msg.ID)
		return
	}

	switch d := decision.(type) {
	case Discard:
		w.ack(ctx, msg.ID)
	case Pending:
		w.nak(ctx, msg.ID, d.RetryAfter)
	case Ready:
		w.processReady(ctx, msg.ID, d)
	default:
		w.ack(ctx, msg.ID)
	}
}

func (w *Worker) processReady(ctx context.Context, id string, d Ready) {
	defer func() {
		if d.Lock != nil {
			if err := w.locker.Release(ctx, d.Lock); err != nil {
				w.log.Warn("analysis worker: lock release failed", zap.Error(err))
			}
		}
	}()

	inputJSON, err := json.Marshal(d.Input)
	if err != nil {
		w.log.Error("analysis worker: encoding input failed", zap.String("id", id), zap.Error(err))
		w.ack(ctx, id)
		return
	}
	truncated := Truncate(w.encoder, string(inputJSON), w.tokenCap)

	var result json.RawMessage
	if err := w.model.Invoke(ctx, truncated, &result); err != nil {
		w.log.Warn("analysis worker: model call failed", zap.String("id", id), zap.Error(err))
		w.nakWithBackoff(ctx, id)
		return
	}

	if err := w.analyzer.Post(ctx, d.Context, result); err != nil {
		w.log.Warn("analysis worker: post failed", zap.String("id", id), zap.Error(err))
		w.nakWithBackoff(ctx, id)
		return
	}

	delete(w.failures, id)
	w.ack(ctx, id)
}

func isPoisoned(err error) bool {
	var poisoned *errkind.PoisonedInput
	return errors.As(err, &poisoned)
}

func (w *Worker) ack(ctx context.Context, id string) {
	if err := w.rdb.XAck(ctx, w.stream, w.group, id).Err(); err != nil {
		w.log.Warn("analysis worker: ack failed", zap.String("id", id), zap.Error(err))
	}
}

// nak leaves the message unacknowledged. Redis Streams has no native
// NAK-with-delay primitive and delay is not applied: the claimer sweep
// redelivers the message once its idle time exceeds ackWait, whatever
// delay was requested.
func (w *Worker) nak(ctx context.Context, id string, delay time.Duration) {
	_ = delay
}

func (w *Worker) nakWithBackoff(ctx context.Context, id string) {
	delay := backoffFor(w.failures[id])
	w.failures[id]++
	w.nak(ctx, id, delay)
}
