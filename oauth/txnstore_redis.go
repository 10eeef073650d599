package oauth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisTxnPrefix string = "txn:"

type RedisTxnStore struct {
	Client *redis.Client
	TTL    time.Duration
}

var _ TxnStore = (*RedisTxnStore)(nil)

func NewRedisTxnStore(redisURL string) (*RedisTxnStore, error) {
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
	return &RedisTxnStore{
		Client: rdb,
		TTL:    TxnTTL,
	}, nil
}

func (s *RedisTxnStore) Put(ctx context.Context, id string, txn *Transaction) error {
	b, err := json.Marshal(txn)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, redisTxnPrefix+id, b, s.TTL).Err()
}

func (s *RedisTxnStore) Get(ctx context.Context, id string) (*Transaction, error) {
	b, err := s.Client.Get(ctx, redisTxnPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrTxnNotFound
	} else if err != nil {
		return nil, err
	}
	var txn Transaction
	if err := json.Unmarshal(b, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

func (s *RedisTxnStore) Delete(ctx context.Context, id string) error {
	return s.Client.Del(ctx, redisTxnPrefix+id).Err()
}
