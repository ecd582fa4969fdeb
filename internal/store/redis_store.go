package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/spsc/goldledger/pkg/errors"
)

// Key layout per collection:
//
//	ledger:<collection>:<key>     one JSON record
//	ledger:<collection>:_index    ZSET of keys scored by first-write time
//	ledger:<collection>:changed   pub/sub channel, one message per mutation
//
// The index score is only assigned on first write (ZADD NX), so replacing or
// patching a record keeps its insertion position.
const (
	keyPrefix     = "ledger:"
	indexSuffix   = ":_index"
	channelSuffix = ":changed"
)

type redisKV struct {
	client *redis.Client
}

// NewRedisKV returns a KV backed by a redis instance.
func NewRedisKV(client *redis.Client) KV {
	return &redisKV{client: client}
}

func recordKey(collection, key string) string {
	return keyPrefix + collection + ":" + key
}

func indexKey(collection string) string {
	return keyPrefix + collection + indexSuffix
}

func channel(collection string) string {
	return keyPrefix + collection + channelSuffix
}

func (s *redisKV) CreateOrReplace(ctx context.Context, collection, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return apperrors.WrapStoreError(err)
	}
	return s.write(ctx, collection, key, raw)
}

func (s *redisKV) Patch(ctx context.Context, collection, key string, fields map[string]any) error {
	current, err := s.client.Get(ctx, recordKey(collection, key)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return apperrors.WrapStoreError(err)
	}

	merged, err := mergePatch(current, fields)
	if err != nil {
		return apperrors.WrapStoreError(err)
	}
	return s.write(ctx, collection, key, merged)
}

// mergePatch merges fields into an existing JSON object record. A nil or
// empty existing record yields a record of just the given fields, which is
// how Patch creates missing records.
func mergePatch(existing []byte, fields map[string]any) ([]byte, error) {
	record := make(map[string]any, len(fields))
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &record); err != nil {
			return nil, err
		}
	}
	for k, v := range fields {
		record[k] = v
	}
	return json.Marshal(record)
}

func (s *redisKV) write(ctx context.Context, collection, key string, raw []byte) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, recordKey(collection, key), raw, 0)
	pipe.ZAddNX(ctx, indexKey(collection), redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: key,
	})
	pipe.Publish(ctx, channel(collection), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.WrapStoreError(err)
	}
	return nil
}

func (s *redisKV) Delete(ctx context.Context, collection, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, recordKey(collection, key))
	pipe.ZRem(ctx, indexKey(collection), key)
	pipe.Publish(ctx, channel(collection), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.WrapStoreError(err)
	}
	return nil
}

func (s *redisKV) Exists(ctx context.Context, collection, key string) (bool, error) {
	n, err := s.client.Exists(ctx, recordKey(collection, key)).Result()
	if err != nil {
		return false, apperrors.WrapStoreError(err)
	}
	return n > 0, nil
}

func (s *redisKV) Push(ctx context.Context, collection string, value any) (string, error) {
	key := uuid.NewString()
	if err := s.CreateOrReplace(ctx, collection, key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *redisKV) Snapshot(ctx context.Context, collection string) (*Snapshot, error) {
	keys, err := s.client.ZRange(ctx, indexKey(collection), 0, -1).Result()
	if err != nil {
		return nil, apperrors.WrapStoreError(err)
	}

	snap := &Snapshot{
		Keys:    make([]string, 0, len(keys)),
		Records: make(map[string]json.RawMessage, len(keys)),
	}
	if len(keys) == 0 {
		return snap, nil
	}

	recordKeys := make([]string, len(keys))
	for i, k := range keys {
		recordKeys[i] = recordKey(collection, k)
	}
	values, err := s.client.MGet(ctx, recordKeys...).Result()
	if err != nil {
		return nil, apperrors.WrapStoreError(err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry with no record: deleted between ZRANGE and MGET.
			continue
		}
		snap.Keys = append(snap.Keys, keys[i])
		snap.Records[keys[i]] = json.RawMessage(raw)
	}
	return snap, nil
}

func (s *redisKV) Subscribe(ctx context.Context, collection string, fn func(*Snapshot)) (UnsubscribeFunc, error) {
	sub := s.client.Subscribe(ctx, channel(collection))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, apperrors.WrapStoreError(err)
	}

	// Initial snapshot is delivered before any change notifications.
	initial, err := s.Snapshot(ctx, collection)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}
	fn(initial)

	go func() {
		for range sub.Channel() {
			snap, err := s.Snapshot(ctx, collection)
			if err != nil {
				log.Printf("store: snapshot of %s after change failed: %v", collection, err)
				continue
			}
			fn(snap)
		}
	}()

	return func() { _ = sub.Close() }, nil
}
