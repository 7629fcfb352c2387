package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "overlay"

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces the keys; documents live at <Prefix>:<id> and the
	// id index at <Prefix>s:index.
	Prefix string
}

// RedisStore keeps overlays as JSON strings plus a set of known ids.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to cfg.Addr and verifies the server answers.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis overlay addr required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultRedisPrefix
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, prefix: cfg.Prefix}, nil
}

func (s *RedisStore) key(id string) string { return s.prefix + ":" + id }
func (s *RedisStore) indexKey() string     { return s.prefix + "s:index" }

func (s *RedisStore) Insert(ctx context.Context, o Overlay) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key(o.ID), doc, 0)
		p.SAdd(ctx, s.indexKey(), o.ID)
		return nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, id string) (Overlay, error) {
	doc, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Overlay{}, ErrNotFound
		}
		return Overlay{}, err
	}
	return decodeDoc(doc)
}

func (s *RedisStore) Replace(ctx context.Context, o Overlay) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, s.key(o.ID), doc, redis.KeepTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.DeleteMany(ctx, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) DeleteMany(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
		members[i] = id
	}

	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, keys...)
		p.SRem(ctx, s.indexKey(), members...)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(del.Val()), nil
}

func (s *RedisStore) List(ctx context.Context, f Filter) ([]Overlay, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Overlay{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Overlay, 0, len(vals))
	for _, v := range vals {
		doc, ok := v.(string)
		if !ok {
			// Indexed id whose document is gone.
			continue
		}
		o, err := decodeDoc([]byte(doc))
		if err != nil {
			return nil, err
		}
		if f.matches(o) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
