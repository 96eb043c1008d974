package cache

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Valkey connection settings for the auth cache.
type Config struct {
	Addr         string
	Password     string
	UsersHashKey string
}

// ValkeyClient caches email:password-hash -> user id lookups so the hot auth
// path skips Postgres.
type ValkeyClient struct {
	client       *redis.Client
	usersHashKey string
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &ValkeyClient{
		client:       rdb,
		usersHashKey: cfg.UsersHashKey,
	}, nil
}

func authCacheKey(email, passwordHash string) string {
	return base64.StdEncoding.EncodeToString([]byte(email + ":" + passwordHash))
}

// GetUserIDByAuth returns the cached user id for a credential pair, or an
// error when the pair is not cached.
func (v *ValkeyClient) GetUserIDByAuth(ctx context.Context, email, passwordHash string) (string, error) {
	userID, err := v.client.HGet(ctx, v.usersHashKey, authCacheKey(email, passwordHash)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", fmt.Errorf("user not found in cache")
		}
		return "", fmt.Errorf("cache lookup error: %w", err)
	}
	return userID, nil
}

// CacheUserAuth stores a verified credential pair for later lookups.
func (v *ValkeyClient) CacheUserAuth(ctx context.Context, email, passwordHash, userID string) error {
	if err := v.client.HSet(ctx, v.usersHashKey, authCacheKey(email, passwordHash), userID).Err(); err != nil {
		return fmt.Errorf("cache store error: %w", err)
	}
	return nil
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
