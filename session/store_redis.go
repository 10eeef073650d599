package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisSessPrefix string = "sess:"

type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisStore{
		Client: rdb,
		TTL:    TTL,
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	b, err := s.Client.Get(ctx, redisSessPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return decodeRecord(b)
}

func (s *RedisStore) Put(ctx context.Context, id string, rec *Record) error {
	b, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, redisSessPrefix+id, b, s.TTL).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.Client.Del(ctx, redisSessPrefix+id).Err()
}
