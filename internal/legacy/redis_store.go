package legacy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisDirectory reads legacy users from Redis. Records are stored as
// JSON under "legacy:user:<lowercased login name>".
type RedisDirectory struct {
	client *redis.Client
	prefix string
}

func NewRedisDirectory(client *redis.Client) *RedisDirectory {
	return &RedisDirectory{
		client: client,
		prefix: "legacy:user:",
	}
}

func (d *RedisDirectory) key(loginName string) string {
	return d.prefix + strings.ToLower(loginName)
}

func (d *RedisDirectory) LookupByLoginName(ctx context.Context, loginName string) (*Record, error) {
	val, err := d.client.Get(ctx, d.key(loginName)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var r Record
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		return nil, fmt.Errorf("legacy: failed to unmarshal record: %w", err)
	}

	return &r, nil
}
