package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"family-quiz-service/internal/bank"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// PromptCache caches the prompt catalog in Redis as one JSON value and falls
// back to a loader on a miss. Replicas share the cached copy.
type PromptCache struct {
	client *redis.Client
	loader bank.Loader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewPromptCache(client *redis.Client, loader bank.Loader, ttl time.Duration) *PromptCache {
	return &PromptCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *PromptCache) LoadPrompts(ctx context.Context) ([]bank.Prompt, error) {
	if prompts, ok := c.cached(ctx); ok {
		return prompts, nil
	}

	result, err, _ := c.sf.Do(c.key(), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if prompts, ok := c.cached(ctx); ok {
			return prompts, nil
		}

		prompts, err := c.loader.LoadPrompts(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(prompts)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, c.key(), raw, c.ttlWithJitter()).Err(); err != nil {
			log.Printf("prompt cache: write failed: %v", err)
		}
		return prompts, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]bank.Prompt), nil
}

func (c *PromptCache) cached(ctx context.Context) ([]bank.Prompt, bool) {
	raw, err := c.client.Get(ctx, c.key()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("prompt cache: read failed: %v", err)
		}
		return nil, false
	}
	var prompts []bank.Prompt
	if err := json.Unmarshal(raw, &prompts); err != nil || len(prompts) == 0 {
		return nil, false
	}
	return prompts, true
}

func (c *PromptCache) key() string {
	return "bank:prompts"
}

func (c *PromptCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
