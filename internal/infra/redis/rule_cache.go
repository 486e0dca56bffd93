package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"elevate-assessment-service/internal/domain"
)

// RuleSource loads stage rules from a backing store (e.g. Postgres).
type RuleSource interface {
	RulesForQuestionnaire(ctx context.Context, questionnaireID string) ([]domain.StageRule, error)
	GlobalRules(ctx context.Context) ([]domain.StageRule, error)
}

// RuleCache caches rule sets in Redis (one JSON value per questionnaire) and
// falls back to the source on cache miss. Invalidate gives admins a path to
// drop a set after editing rules; the TTL bounds staleness otherwise.
type RuleCache struct {
	client *redis.Client
	source RuleSource
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewRuleCache(client *redis.Client, source RuleSource, ttl time.Duration) *RuleCache {
	return &RuleCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *RuleCache) RulesForQuestionnaire(ctx context.Context, questionnaireID string) ([]domain.StageRule, error) {
	return c.get(ctx, questionnaireID)
}

func (c *RuleCache) GlobalRules(ctx context.Context) ([]domain.StageRule, error) {
	return c.get(ctx, "")
}

// Invalidate drops the cached rule set for one questionnaire ("" = global).
func (c *RuleCache) Invalidate(ctx context.Context, questionnaireID string) error {
	return c.client.Del(ctx, c.key(questionnaireID)).Err()
}

func (c *RuleCache) get(ctx context.Context, questionnaireID string) ([]domain.StageRule, error) {
	key := c.key(questionnaireID)

	if rules, ok := c.fromCache(ctx, key); ok {
		return rules, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if rules, ok := c.fromCache(ctx, key); ok {
			return rules, nil
		}

		var rules []domain.StageRule
		var err error
		if questionnaireID == "" {
			rules, err = c.source.GlobalRules(ctx)
		} else {
			rules, err = c.source.RulesForQuestionnaire(ctx, questionnaireID)
		}
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(rules); err == nil {
			// best-effort cache fill
			_ = c.client.Set(ctx, key, data, c.ttlWithJitter()).Err()
		}
		return rules, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.StageRule), nil
}

func (c *RuleCache) fromCache(ctx context.Context, key string) ([]domain.StageRule, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var rules []domain.StageRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, false
	}
	return rules, true
}

func (c *RuleCache) key(questionnaireID string) string {
	if questionnaireID == "" {
		return "stagerules:global"
	}
	return "stagerules:" + questionnaireID
}

func (c *RuleCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
