package implementation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"live-insights-be/internal/entity"
	"live-insights-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ContextBufferRepositoryImpl keeps each session's rolling transcript in a
// Redis sorted set scored by utterance timestamp (unix millis). ZADD with a
// byte-identical member makes retried appends idempotent; eviction is two
// trims inside one MULTI/EXEC so a concurrent reader never observes the
// buffer mid-eviction.
type ContextBufferRepositoryImpl struct {
	rdb          *redis.Client
	window       time.Duration
	maxSentences int64
	ttl          time.Duration
}

func NewContextBufferRepository(rdb *redis.Client, window time.Duration, maxSentences int, ttl time.Duration) contract.ContextBufferRepository {
	return &ContextBufferRepositoryImpl{
		rdb:          rdb,
		window:       window,
		maxSentences: int64(maxSentences),
		ttl:          ttl,
	}
}

func bufferKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s:transcript", sessionID)
}

func bufferAttrsKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s:transcript:attrs", sessionID)
}

// bufferMember is the persisted identity of one sentence: exactly the
// idempotency key (timestamp, speaker, text) and nothing else. An STT
// retry re-emitting the same sentence with a revised confidence must map
// to the same member. Struct field order keeps the encoding/json output
// deterministic.
type bufferMember struct {
	Timestamp int64  `json:"ts"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
}

// bufferAttrs carries the fields outside the identity. Kept in a side
// hash keyed by member so a retry overwrites instead of duplicating.
type bufferAttrs struct {
	Confidence float64                `json:"confidence"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

func memberIdentity(sentence *entity.TranscriptSentence) (string, error) {
	raw, err := json.Marshal(bufferMember{
		Timestamp: sentence.Timestamp.UnixMilli(),
		Speaker:   sentence.Speaker,
		Text:      sentence.Text,
	})
	if err != nil {
		return "", fmt.Errorf("marshal buffer member: %w", err)
	}
	return string(raw), nil
}

func (r *ContextBufferRepositoryImpl) Append(ctx context.Context, sentence *entity.TranscriptSentence) error {
	member, err := memberIdentity(sentence)
	if err != nil {
		return err
	}
	attrsJson, err := json.Marshal(bufferAttrs{
		Confidence: sentence.Confidence,
		Metadata:   sentence.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal buffer attrs: %w", err)
	}

	key := bufferKey(sentence.SessionId)
	attrsKey := bufferAttrsKey(sentence.SessionId)
	score := float64(sentence.Timestamp.UnixMilli())
	windowCutoff := float64(time.Now().Add(-r.window).UnixMilli())

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: member})
		pipe.HSet(ctx, attrsKey, member, string(attrsJson))
		// Window rule first, then count rule; stricter wins because both run.
		// Attrs of evicted members stay in the hash until the key TTL; reads
		// join through the sorted set so they are never observed.
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatFloat(windowCutoff, 'f', 0, 64))
		pipe.ZRemRangeByRank(ctx, key, 0, -(r.maxSentences + 1))
		pipe.Expire(ctx, key, r.ttl)
		pipe.Expire(ctx, attrsKey, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("buffer append: %w", err)
	}
	return nil
}

func (r *ContextBufferRepositoryImpl) Read(ctx context.Context, sessionID uuid.UUID, window time.Duration) ([]*entity.TranscriptSentence, error) {
	min := "-inf"
	if window > 0 {
		min = strconv.FormatInt(time.Now().Add(-window).UnixMilli(), 10)
	}

	var (
		rangeCmd *redis.StringSliceCmd
		attrsCmd *redis.MapStringStringCmd
	)
	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		rangeCmd = pipe.ZRangeByScore(ctx, bufferKey(sessionID), &redis.ZRangeBy{
			Min: min,
			Max: "+inf",
		})
		attrsCmd = pipe.HGetAll(ctx, bufferAttrsKey(sessionID))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("buffer read: %w", err)
	}

	raw := rangeCmd.Val()
	attrsByMember := attrsCmd.Val()

	sentences := make([]*entity.TranscriptSentence, 0, len(raw))
	for _, item := range raw {
		var member bufferMember
		if err := json.Unmarshal([]byte(item), &member); err != nil {
			// Skip undecodable members rather than failing the read.
			continue
		}
		var attrs bufferAttrs
		if rawAttrs, ok := attrsByMember[item]; ok {
			_ = json.Unmarshal([]byte(rawAttrs), &attrs)
		}
		sentences = append(sentences, &entity.TranscriptSentence{
			SessionId:  sessionID,
			Timestamp:  time.UnixMilli(member.Timestamp),
			Speaker:    member.Speaker,
			Text:       member.Text,
			Confidence: attrs.Confidence,
			Metadata:   attrs.Metadata,
		})
	}
	return sentences, nil
}

func (r *ContextBufferRepositoryImpl) Stats(ctx context.Context, sessionID uuid.UUID) (*contract.BufferStats, error) {
	key := bufferKey(sessionID)

	var (
		cardCmd  *redis.IntCmd
		firstCmd *redis.ZSliceCmd
		lastCmd  *redis.ZSliceCmd
		ttlCmd   *redis.DurationCmd
	)

	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		cardCmd = pipe.ZCard(ctx, key)
		firstCmd = pipe.ZRangeWithScores(ctx, key, 0, 0)
		lastCmd = pipe.ZRangeWithScores(ctx, key, -1, -1)
		ttlCmd = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("buffer stats: %w", err)
	}

	stats := &contract.BufferStats{
		Count:       cardCmd.Val(),
		TTL:         ttlCmd.Val(),
		StoreHealth: true,
	}

	first := firstCmd.Val()
	last := lastCmd.Val()
	if len(first) == 1 && len(last) == 1 {
		stats.Span = time.Duration(last[0].Score-first[0].Score) * time.Millisecond
	}

	return stats, nil
}

func (r *ContextBufferRepositoryImpl) Clear(ctx context.Context, sessionID uuid.UUID) error {
	if err := r.rdb.Del(ctx, bufferKey(sessionID), bufferAttrsKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("buffer clear: %w", err)
	}
	return nil
}
