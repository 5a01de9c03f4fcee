// Package redis implements the Provider interface using Redis/Valkey.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/swap357/cirunner/internal/provider"
	"github.com/swap357/cirunner/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.Provider = (*RedisProvider)(nil)

const defaultPrefix = "cirunner:"

// RedisProvider stores the whole state document as one JSON value. A single
// SET replaces it, so readers see either the old or the new document.
type RedisProvider struct {
	client *goredis.Client
	prefix string
}

// New creates a new RedisProvider.
func New(cfg *Config) *RedisProvider {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewFromClient(client, cfg.KeyPrefix)
}

// NewFromClient creates a RedisProvider from an existing client (useful for testing).
func NewFromClient(client *goredis.Client, prefix string) *RedisProvider {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisProvider{client: client, prefix: prefix}
}

// Start initializes the provider connection.
func (p *RedisProvider) Start(ctx context.Context) error {
	return p.Ping(ctx)
}

// Stop closes the provider connection.
func (p *RedisProvider) Stop(_ context.Context) error {
	return p.client.Close()
}

// Ping checks connectivity to the Redis server.
func (p *RedisProvider) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (p *RedisProvider) stateKey() string { return p.prefix + "state" }

// Load fetches the document; a missing key yields an empty document.
func (p *RedisProvider) Load(ctx context.Context) (types.StateDocument, error) {
	data, err := p.client.Get(ctx, p.stateKey()).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return types.StateDocument{}, nil
		}
		return nil, fmt.Errorf("redis get state: %w", err)
	}

	doc := types.StateDocument{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing redis state: %w", err)
	}
	return doc, nil
}

// Save replaces the document with a single SET.
func (p *RedisProvider) Save(ctx context.Context, doc types.StateDocument) error {
	if doc == nil {
		doc = types.StateDocument{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := p.client.Set(ctx, p.stateKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set state: %w", err)
	}
	return nil
}
