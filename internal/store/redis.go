package store

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisSink implements cluster.IngestSink as a Redis Streams producer: each
// call to Ingest is an XADD against the named stream carrying the
// serialized payload. This is the one concrete adapter behind the
// otherwise-opaque internal ingestion sink named in the specification.
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(addr, password string, db int) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisSink{client: client}, nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}

// Ingest publishes payload onto stream via XADD under the "payload" field,
// matching the UTF-8 JSON bytes contract from spec §6.
func (s *RedisSink) Ingest(ctx context.Context, stream string, payload []byte) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"payload": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	return nil
}
