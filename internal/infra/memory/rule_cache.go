package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"elevate-assessment-service/internal/domain"
)

// RuleSource loads stage rules from a backing store (e.g. Postgres).
type RuleSource interface {
	RulesForQuestionnaire(ctx context.Context, questionnaireID string) ([]domain.StageRule, error)
	GlobalRules(ctx context.Context) ([]domain.StageRule, error)
}

// RuleCache caches rule sets per questionnaire with TTL to avoid repeated DB
// hits during resolution. Admins edit rules rarely; the TTL plus Invalidate
// bounds staleness.
type RuleCache struct {
	source RuleSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedRules
}

type cachedRules struct {
	rules     []domain.StageRule
	expiresAt time.Time
}

func NewRuleCache(source RuleSource, ttl time.Duration) *RuleCache {
	return &RuleCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedRules),
	}
}

func (c *RuleCache) RulesForQuestionnaire(ctx context.Context, questionnaireID string) ([]domain.StageRule, error) {
	return c.get(ctx, questionnaireID)
}

func (c *RuleCache) GlobalRules(ctx context.Context) ([]domain.StageRule, error) {
	return c.get(ctx, "")
}

// Invalidate drops the cached rule set for one questionnaire ("" = global).
func (c *RuleCache) Invalidate(questionnaireID string) {
	c.mu.Lock()
	delete(c.cache, questionnaireID)
	c.mu.Unlock()
}

func (c *RuleCache) get(ctx context.Context, key string) ([]domain.StageRule, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.rules, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.rules, nil
		}
		c.mu.RUnlock()

		rules, err := c.load(ctx, key)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[key] = cachedRules{
			rules:     rules,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return rules, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.StageRule), nil
}

func (c *RuleCache) load(ctx context.Context, key string) ([]domain.StageRule, error) {
	if key == "" {
		return c.source.GlobalRules(ctx)
	}
	return c.source.RulesForQuestionnaire(ctx, key)
}

func (c *RuleCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
