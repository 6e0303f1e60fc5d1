package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"family-quiz-service/internal/bank"
	"golang.org/x/sync/singleflight"
)

const catalogKey = "catalog"

// PromptCache caches the prompt catalog with a TTL so room creation does not
// hit the backing store every time.
type PromptCache struct {
	loader bank.Loader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	prompts   []bank.Prompt
	expiresAt time.Time
}

func NewPromptCache(loader bank.Loader, ttl time.Duration) *PromptCache {
	return &PromptCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *PromptCache) LoadPrompts(ctx context.Context) ([]bank.Prompt, error) {
	if prompts, ok := c.cached(c.clock()); ok {
		return prompts, nil
	}

	result, err, _ := c.sf.Do(catalogKey, func() (interface{}, error) {
		now := c.clock()
		if prompts, ok := c.cached(now); ok {
			return prompts, nil
		}

		prompts, err := c.loader.LoadPrompts(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.prompts = prompts
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return prompts, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]bank.Prompt(nil), result.([]bank.Prompt)...), nil
}

func (c *PromptCache) cached(now time.Time) ([]bank.Prompt, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.prompts == nil || !c.expiresAt.After(now) {
		return nil, false
	}
	return append([]bank.Prompt(nil), c.prompts...), true
}

func (c *PromptCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter so replicas don't reload in lockstep
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
