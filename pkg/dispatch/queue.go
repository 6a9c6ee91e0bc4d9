// Package dispatch implements the work-dispatch queue of spec.md §4.4: a
// per-pipeline poller that claims one unclaimed work_items row via an
// index-backed SKIP LOCKED query and publishes a durable message to a
// Redis Stream before committing the claim.
//
// The SKIP LOCKED claim transaction itself has no direct analogue
// anywhere in the retrieval pack (grep across the pack turned up no
// "FOR UPDATE SKIP LOCKED" usage at all); it is grounded on the pack's
// general pgxpool.Acquire/conn.Exec/ticker-loop idiom from
// wisbric-nightowl's roster worker, generalized to a locking SELECT.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pipeline names the work_items timestamp column a Poller claims against.
type Pipeline string

const (
	PipelineAnalysis Pipeline = "analysis"
	PipelineImages   Pipeline = "images"
)

func (p Pipeline) dispatchColumn() string {
	switch p {
	case PipelineAnalysis:
		return "dispatched_analysis_at"
	case PipelineImages:
		return "dispatched_images_at"
	default:
		return "dispatched_analysis_at"
	}
}

// StreamSubject returns the durable Redis Stream key a pipeline publishes
// work to, mirroring the broker subject names of spec.md §6. Exported so
// consumers (e.g. the analysis worker binary) can subscribe to the same
// stream a Poller publishes onto.
func (p Pipeline) StreamSubject() string {
	switch p {
	case PipelineAnalysis:
		return "dorch.wad.analysis"
	case PipelineImages:
		return "dorch.wad.img"
	default:
		return "dorch.wad.analysis"
	}
}

// BackoffPolicy is the empty-pull backoff schedule of spec.md §4.4/§5:
// 250ms doubling, capped at 15s, with 0-1s jitter.
type BackoffPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

var DefaultBackoff = BackoffPolicy{Initial: 250 * time.Millisecond, Max: 15 * time.Second}

func (b BackoffPolicy) next(attempt int) time.Duration {
	d := b.Initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			d = b.Max
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	return d + jitter
}

// Poller claims rows for one pipeline and publishes them as durable
// stream messages.
type Poller struct {
	pool     *pgxpool.Pool
	rdb      *redis.Client
	pipeline Pipeline
	backoff  BackoffPolicy
	log      *zap.Logger
}

func NewPoller(pool *pgxpool.Pool, rdb *redis.Client, pipeline Pipeline, log *zap.Logger) *Poller {
	return &Poller{pool: pool, rdb: rdb, pipeline: pipeline, backoff: DefaultBackoff, log: log}
}

// Run loops claim attempts until ctx is canceled, backing off on each
// empty hit and resetting the backoff counter on each successful claim.
func (p *Poller) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		claimed, err := p.tick(ctx)
		if err != nil {
			p.log.Error("dispatch: tick failed", zap.String("pipeline", string(p.pipeline)), zap.Error(err))
			attempt++
		} else if !claimed {
			attempt++
		} else {
			attempt = 0
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.backoff.next(attempt)):
		}
	}
}

// tick opens a transaction, claims one unclaimed row, publishes it, marks
// it claimed, and commits. It reports whether a row was claimed.
func (p *Poller) tick(ctx context.Context) (bool, error) {
	col := p.pipeline.dispatchColumn()

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var wadID string
	query := fmt.Sprintf(`
		SELECT wad_id FROM work_items
		WHERE %s IS NULL
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1`, col)
	err = tx.QueryRow(ctx, query).Scan(&wadID)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("committing empty tick: %w", err)
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claiming row: %w", err)
	}

	messageID := dedupID(p.pipeline, wadID)
	if err := p.publish(ctx, wadID, messageID); err != nil {
		// A failed publish rolls back (via the deferred Rollback) so the
		// row remains dispatchable, per spec.md §4.4.
		return false, fmt.Errorf("publishing %s: %w", messageID, err)
	}

	update := fmt.Sprintf(`UPDATE work_items SET %s = now() WHERE wad_id = $1`, col)
	if _, err := tx.Exec(ctx, update, wadID); err != nil {
		return false, fmt.Errorf("marking claimed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing claim: %w", err)
	}

	p.log.Info("dispatch: published", zap.String("pipeline", string(p.pipeline)), zap.String("wad_id", wadID))
	return true, nil
}

func dedupID(pipeline Pipeline, wadID string) string {
	if pipeline == PipelineImages {
		return fmt.Sprintf("wad-img-%s", wadID)
	}
	return fmt.Sprintf("wad-analysis-%s", wadID)
}

// publish writes a durable stream entry carrying the work key and
// deterministic dedup id, so downstream consumers can dedup even though
// the dispatch contract is at-least-once (spec.md §5).
func (p *Poller) publish(ctx context.Context, wadID, messageID string) error {
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.pipeline.StreamSubject(),
		Values: map[string]interface{}{
			"wad_id":   wadID,
			"dedup_id": messageID,
			"pipeline": string(p.pipeline),
		},
	}).Err()
}
