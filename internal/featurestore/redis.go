// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package featurestore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Hash fields of user and item records.
const (
	fieldPreference  = "preference"
	fieldInterests   = "interests"
	fieldSegment     = "segment"
	fieldInteraction = "interactions"

	fieldEmbedding   = "embedding"
	fieldTopics      = "topics"
	fieldPlatform    = "platform"
	fieldContentType = "content_type"
	fieldCreatedAt   = "created_at"
	fieldEngagement  = "engagement"
	fieldImpressions = "impressions"
	fieldPopularity  = "popularity"
)

// RedisOptions configures NewRedisClient.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

// RedisSource reads features from Redis hashes and keeps a popularity
// sorted set for candidate supply.
//
// Layout:
//
//	{prefix}:user:{id}    hash  preference, interests, segment, interactions
//	{prefix}:item:{id}    hash  embedding, topics, platform, content_type, created_at, ...
//	{prefix}:popularity   zset  item id scored by decayed popularity
type RedisSource struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisSource creates a source over an existing client.
func NewRedisSource(client redis.UniversalClient, prefix string) *RedisSource {
	if prefix == "" {
		prefix = "fs"
	}
	return &RedisSource{client: client, prefix: prefix}
}

func (r *RedisSource) userKey(id string) string { return r.prefix + ":user:" + id }
func (r *RedisSource) itemKey(id string) string { return r.prefix + ":item:" + id }
func (r *RedisSource) popularityKey() string    { return r.prefix + ":popularity" }

// GetUser implements Source.
func (r *RedisSource) GetUser(ctx context.Context, id string) (UserFeatures, error) {
	fields, err := r.client.HGetAll(ctx, r.userKey(id)).Result()
	if err != nil {
		return UserFeatures{}, fmt.Errorf("redis hgetall user %s: %w", id, err)
	}
	if len(fields) == 0 {
		return UserFeatures{}, ErrNotFound
	}
	return decodeUser(id, fields)
}

// GetItems implements Source with one pipelined round trip.
func (r *RedisSource) GetItems(ctx context.Context, ids []string) (map[string]ItemFeatures, error) {
	out := make(map[string]ItemFeatures, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.itemKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis pipeline get %d items: %w", len(ids), err)
	}

	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		item, err := decodeItem(ids[i], fields)
		if err != nil {
			return nil, err
		}
		out[ids[i]] = item
	}
	return out, nil
}

// TopPopular implements Source.
func (r *RedisSource) TopPopular(ctx context.Context, offset, k int) ([]string, error) {
	if k <= 0 || offset < 0 {
		return nil, nil
	}
	start := int64(offset)
	ids, err := r.client.ZRevRange(ctx, r.popularityKey(), start, start+int64(k)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange popularity: %w", err)
	}
	return ids, nil
}

// WritePopularity implements PopularityWriter. Scores are written to the
// item hash and the popularity sorted set in one pipeline.
func (r *RedisSource) WritePopularity(ctx context.Context, scores map[string]float64) error {
	if len(scores) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for id, score := range scores {
		pipe.HSet(ctx, r.itemKey(id), fieldPopularity, strconv.FormatFloat(score, 'g', -1, 64))
		pipe.ZAdd(ctx, r.popularityKey(), redis.Z{Score: score, Member: id})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis write popularity for %d items: %w", len(scores), err)
	}
	return nil
}

// PutUser stores a user record.
func (r *RedisSource) PutUser(ctx context.Context, u UserFeatures) error {
	values, err := encodeUser(u)
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.userKey(u.ID), values).Err(); err != nil {
		return fmt.Errorf("redis hset user %s: %w", u.ID, err)
	}
	return nil
}

// PutItem stores an item record and indexes its popularity.
func (r *RedisSource) PutItem(ctx context.Context, it ItemFeatures) error {
	values, err := encodeItem(it)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.itemKey(it.ID), values)
	pipe.ZAdd(ctx, r.popularityKey(), redis.Z{Score: it.Popularity, Member: it.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put item %s: %w", it.ID, err)
	}
	return nil
}

func encodeUser(u UserFeatures) (map[string]interface{}, error) {
	pref, err := json.Marshal(u.Preference)
	if err != nil {
		return nil, fmt.Errorf("encode preference of %s: %w", u.ID, err)
	}
	interests, err := json.Marshal(u.Interests)
	if err != nil {
		return nil, fmt.Errorf("encode interests of %s: %w", u.ID, err)
	}
	return map[string]interface{}{
		fieldPreference:  string(pref),
		fieldInterests:   string(interests),
		fieldSegment:     u.Segment,
		fieldInteraction: strconv.FormatInt(u.InteractionCount, 10),
	}, nil
}

func decodeUser(id string, f map[string]string) (UserFeatures, error) {
	u := UserFeatures{ID: id, Segment: f[fieldSegment]}
	if err := unmarshalField(f, fieldPreference, &u.Preference); err != nil {
		return UserFeatures{}, fmt.Errorf("decode user %s: %w", id, err)
	}
	if err := unmarshalField(f, fieldInterests, &u.Interests); err != nil {
		return UserFeatures{}, fmt.Errorf("decode user %s: %w", id, err)
	}
	n, err := parseIntField(f, fieldInteraction)
	if err != nil {
		return UserFeatures{}, fmt.Errorf("decode user %s: %w", id, err)
	}
	u.InteractionCount = n
	return u, nil
}

func encodeItem(it ItemFeatures) (map[string]interface{}, error) {
	emb, err := json.Marshal(it.Embedding)
	if err != nil {
		return nil, fmt.Errorf("encode embedding of %s: %w", it.ID, err)
	}
	topics, err := json.Marshal(it.Topics)
	if err != nil {
		return nil, fmt.Errorf("encode topics of %s: %w", it.ID, err)
	}
	return map[string]interface{}{
		fieldEmbedding:   string(emb),
		fieldTopics:      string(topics),
		fieldPlatform:    it.Platform,
		fieldContentType: it.ContentType,
		fieldCreatedAt:   it.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldEngagement:  strconv.FormatInt(it.EngagementCount, 10),
		fieldImpressions: strconv.FormatInt(it.Impressions, 10),
		fieldPopularity:  strconv.FormatFloat(it.Popularity, 'g', -1, 64),
	}, nil
}

func decodeItem(id string, f map[string]string) (ItemFeatures, error) {
	it := ItemFeatures{
		ID:          id,
		Platform:    f[fieldPlatform],
		ContentType: f[fieldContentType],
	}
	if err := unmarshalField(f, fieldEmbedding, &it.Embedding); err != nil {
		return ItemFeatures{}, fmt.Errorf("decode item %s: %w", id, err)
	}
	if err := unmarshalField(f, fieldTopics, &it.Topics); err != nil {
		return ItemFeatures{}, fmt.Errorf("decode item %s: %w", id, err)
	}
	if raw := f[fieldCreatedAt]; raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return ItemFeatures{}, fmt.Errorf("decode item %s: created_at: %w", id, err)
		}
		it.CreatedAt = ts
	}
	var err error
	if it.EngagementCount, err = parseIntField(f, fieldEngagement); err != nil {
		return ItemFeatures{}, fmt.Errorf("decode item %s: %w", id, err)
	}
	if it.Impressions, err = parseIntField(f, fieldImpressions); err != nil {
		return ItemFeatures{}, fmt.Errorf("decode item %s: %w", id, err)
	}
	if raw := f[fieldPopularity]; raw != "" {
		if it.Popularity, err = strconv.ParseFloat(raw, 64); err != nil {
			return ItemFeatures{}, fmt.Errorf("decode item %s: popularity: %w", id, err)
		}
	}
	return it, nil
}

func unmarshalField(f map[string]string, name string, dst interface{}) error {
	raw := f[name]
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func parseIntField(f map[string]string, name string) (int64, error) {
	raw := f[name]
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

var (
	_ Source           = (*RedisSource)(nil)
	_ PopularityWriter = (*RedisSource)(nil)
)
