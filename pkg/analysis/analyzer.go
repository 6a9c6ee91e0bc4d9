package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/beebs-dev/dorch-sub000/pkg/lock"
)

// Decision is the closed set derive_input may return, per spec.md §4.4.
// The Open Question in spec.md §9 ("two diverging shapes of the
// analyzer-app type") is standardized here on Ready{lock?: *lock.Handle}.
type Decision interface{ isDecision() }

// Ready means the worker should proceed, optionally holding a lock across
// the model call and the post step.
type Ready struct {
	Input   any
	Context any
	Lock    *lock.Handle
}

func (Ready) isDecision() {}

// Pending means the message should be NAK'd with the given delay and
// redelivered later (e.g. a dependency is not ready yet).
type Pending struct {
	RetryAfter time.Duration
}

func (Pending) isDecision() {}

// Discard means the worker should ack and do nothing else.
type Discard struct{}

func (Discard) isDecision() {}

// ContentService is the external collaborator (spec.md §1 calls the
// content database's schema out of scope) this package consumes: it
// resolves work items, records which per-map analyses already exist, and
// persists posted results.
type ContentService interface {
	GetWorkItem(ctx context.Context, wadID string) (WorkItem, error)
	HasMapAnalysis(ctx context.Context, wadID, mapName string) (bool, error)
	HasWadAnalysis(ctx context.Context, wadID string) (bool, error)
	PostResult(ctx context.Context, context any, result json.RawMessage) error
}

// WorkItem mirrors spec.md §3's Work Item plus the WAD-specific map list
// needed for dependency gating.
type WorkItem struct {
	WadID string
	Maps  []string
	// Content is the full, cyclic content record as the content service
	// returns it; callers must sanitize it before serializing to the model
	// (see SanitizeInput).
	Content map[string]any
}

// Publisher lets an analyzer emit dependent work messages, mirroring the
// durable-stream publish dispatch.Poller performs for top-level work.
type Publisher interface {
	PublishMapAnalysis(ctx context.Context, wadID, mapName, dedupID string) error
}

// MapAnalysisStream is the single well-known stream every dependent
// per-map analysis message is published onto, carrying wad_id/map_name
// in the message body rather than the stream key — the same flat-stream
// convention dispatch.Poller already uses for top-level work, so one
// consumer-group loop can serve every wad/map pair instead of needing a
// per-key stream-discovery mechanism.
const MapAnalysisStream = "dorch.wad.map.analysis"

// RedisPublisher publishes dependent map-analysis messages onto
// MapAnalysisStream.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher { return &RedisPublisher{rdb: rdb} }

func (p *RedisPublisher) PublishMapAnalysis(ctx context.Context, wadID, mapName, dedupID string) error {
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: MapAnalysisStream,
		Values: map[string]interface{}{
			"wad_id":   wadID,
			"map_name": mapName,
			"dedup_id": dedupID,
		},
	}).Err()
}

// MapDedupID builds the deterministic dependent-message id of spec.md
// §4.4: "wad-<id>-map-<name>".
func MapDedupID(wadID, mapName string) string {
	return fmt.Sprintf("wad-%s-map-%s", wadID, mapName)
}

// Analyzer is the dynamic-dispatch pair spec.md §9 calls for: derive_input
// classifies an incoming message, post persists a model result.
type Analyzer interface {
	DeriveInput(ctx context.Context, subject string, payload []byte) (Decision, error)
	Post(ctx context.Context, analysisContext any, result json.RawMessage) error
}

// wadAnalysisContext is the Context value a Ready decision carries for the
// top-level WAD analyzer.
type wadAnalysisContext struct {
	WadID string
}

// WadAnalyzer implements the top-level WAD analysis variant, including
// the sub-map dependency gating of spec.md §4.4.
type WadAnalyzer struct {
	content   ContentService
	publisher Publisher
	locker    *lock.Locker
	lockTTL   time.Duration
}

func NewWadAnalyzer(content ContentService, publisher Publisher, locker *lock.Locker) *WadAnalyzer {
	return &WadAnalyzer{content: content, publisher: publisher, locker: locker, lockTTL: 5 * time.Minute}
}

type wadMessage struct {
	WadID string `json:"wad_id"`
}

func (a *WadAnalyzer) DeriveInput(ctx context.Context, subject string, payload []byte) (Decision, error) {
	var msg wadMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("decoding wad message: %w", err)
	}

	item, err := a.content.GetWorkItem(ctx, msg.WadID)
	if err != nil {
		return nil, fmt.Errorf("loading work item %s: %w", msg.WadID, err)
	}

	var missing []string
	for _, mapName := range item.Maps {
		has, err := a.content.HasMapAnalysis(ctx, item.WadID, mapName)
		if err != nil {
			return nil, fmt.Errorf("checking map analysis %s/%s: %w", item.WadID, mapName, err)
		}
		if !has {
			missing = append(missing, mapName)
		}
	}
	if len(missing) > 0 {
		for _, mapName := range missing {
			dedupID := MapDedupID(item.WadID, mapName)
			if err := a.publisher.PublishMapAnalysis(ctx, item.WadID, mapName, dedupID); err != nil {
				return nil, fmt.Errorf("publishing dependent map analysis %s: %w", dedupID, err)
			}
		}
		return Pending{RetryAfter: 10 * time.Minute}, nil
	}

	lockKey := fmt.Sprintf("l:w:%s", item.WadID)
	handle, ok, err := a.locker.Acquire(ctx, lockKey, a.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", lockKey, err)
	}
	if !ok {
		return Pending{RetryAfter: 30 * time.Second}, nil
	}

	return Ready{
		Input:   SanitizeInput(item.Content),
		Context: wadAnalysisContext{WadID: item.WadID},
		Lock:    handle,
	}, nil
}

func (a *WadAnalyzer) Post(ctx context.Context, analysisContext any, result json.RawMessage) error {
	return a.content.PostResult(ctx, analysisContext, result)
}

// mapAnalysisContext is the Context value a Ready decision carries for
// the per-map analyzer.
type mapAnalysisContext struct {
	WadID   string
	MapName string
}

type mapMessage struct {
	WadID   string `json:"wad_id"`
	MapName string `json:"map_name"`
}

// MapAnalyzer implements the per-map analysis variant: if the content
// service already has an analysis, discard; otherwise lock and proceed.
type MapAnalyzer struct {
	content ContentService
	locker  *lock.Locker
	lockTTL time.Duration
}

func NewMapAnalyzer(content ContentService, locker *lock.Locker) *MapAnalyzer {
	return &MapAnalyzer{content: content, locker: locker, lockTTL: 5 * time.Minute}
}

func (a *MapAnalyzer) DeriveInput(ctx context.Context, subject string, payload []byte) (Decision, error) {
	var msg mapMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("decoding map message: %w", err)
	}

	exists, err := a.content.HasMapAnalysis(ctx, msg.WadID, msg.MapName)
	if err != nil {
		return nil, fmt.Errorf("checking map analysis %s/%s: %w", msg.WadID, msg.MapName, err)
	}
	if exists {
		return Discard{}, nil
	}

	item, err := a.content.GetWorkItem(ctx, msg.WadID)
	if err != nil {
		return nil, fmt.Errorf("loading work item %s: %w", msg.WadID, err)
	}

	lockKey := fmt.Sprintf("l:w:%s:m:%s", msg.WadID, msg.MapName)
	handle, ok, err := a.locker.Acquire(ctx, lockKey, a.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", lockKey, err)
	}
	if !ok {
		return Pending{RetryAfter: 30 * time.Second}, nil
	}

	return Ready{
		Input:   SanitizeInput(item.Content),
		Context: mapAnalysisContext{WadID: msg.WadID, MapName: msg.MapName},
		Lock:    handle,
	}, nil
}

func (a *MapAnalyzer) Post(ctx context.Context, analysisContext any, result json.RawMessage) error {
	return a.content.PostResult(ctx, analysisContext, result)
}

// SanitizeInput implements the input-hygiene rule of spec.md §4.4: strip
// cyclic back-references, content hashes, and images arrays before
// serializing to the model, and character-truncate any embedded text
// fields.
func SanitizeInput(content map[string]any) map[string]any {
	clean := make(map[string]any, len(content))
	for k, v := range content {
		switch k {
		case "analysis", "content_hash", "images":
			continue
		}
		if s, ok := v.(string); ok && looksLikeEmbeddedText(k) {
			clean[k] = TruncateEmbeddedText(s)
			continue
		}
		clean[k] = v
	}
	return clean
}

func looksLikeEmbeddedText(fieldName string) bool {
	switch fieldName {
	case "text", "description", "readme", "notes":
		return true
	default:
		return false
	}
}
