package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"dealdossier/internal/domain"
	"dealdossier/internal/port"
)

const redisKeyPrefix = "dossier:batch:"

type redisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return rdb, nil
}

// NewRedisStore keeps msgpack-encoded snapshots in redis with a TTL.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) port.ProgressStore {
	return &redisStore{rdb: rdb, ttl: ttl}
}

func redisKey(batchID uuid.UUID) string {
	return redisKeyPrefix + batchID.String()
}

func (s *redisStore) Save(ctx context.Context, snap port.BatchSnapshot) error {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, redisKey(snap.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redisStore.Save: %w", err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, batchID uuid.UUID) (*port.BatchSnapshot, error) {
	data, err := s.rdb.Get(ctx, redisKey(batchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("redisStore.Get: %w", err)
	}
	return DecodeSnapshot(data)
}

// EncodeSnapshot serializes a snapshot with msgpack.
func EncodeSnapshot(snap port.BatchSnapshot) ([]byte, error) {
	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return nil, fmt.Errorf("encoding batch snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot is the inverse of EncodeSnapshot.
func DecodeSnapshot(data []byte) (*port.BatchSnapshot, error) {
	var snap port.BatchSnapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding batch snapshot: %w", err)
	}
	return &snap, nil
}
