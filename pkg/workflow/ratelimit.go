package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
)

// RateLimiter gates new workflow runs. Allow returns a non-empty reason when
// the run is denied. Limits of zero are unlimited.
type RateLimiter interface {
	Allow(ctx context.Context, wf *models.Workflow, entityID string) (allowed bool, reason string, err error)
}

// LedgerRateLimiter enforces limits by counting prior execution ledger rows.
// The counts are soft: two racing runs can both read under the limit and
// both proceed, so the limit can be overshot by the degree of concurrency.
type LedgerRateLimiter struct {
	executions persistence.ExecutionRepository
	now        func() time.Time
}

func NewLedgerRateLimiter(executions persistence.ExecutionRepository) *LedgerRateLimiter {
	return &LedgerRateLimiter{executions: executions, now: time.Now}
}

// WithClock replaces the clock, for tests.
func (l *LedgerRateLimiter) WithClock(now func() time.Time) *LedgerRateLimiter {
	l.now = now

	return l
}

func (l *LedgerRateLimiter) Allow(ctx context.Context, wf *models.Workflow, entityID string) (bool, string, error) {
	now := l.now()

	if wf.RateLimitPerHour > 0 {
		count, err := l.executions.CountSince(ctx, wf.ID, "", now.Add(-time.Hour))
		if err != nil {
			return false, "", fmt.Errorf("count hourly executions: %w", err)
		}

		if count >= wf.RateLimitPerHour {
			return false, fmt.Sprintf("hourly rate limit reached (%d/h)", wf.RateLimitPerHour), nil
		}
	}

	if wf.RateLimitPerEntityPerDay > 0 && entityID != "" {
		count, err := l.executions.CountSince(ctx, wf.ID, entityID, now.Add(-24*time.Hour))
		if err != nil {
			return false, "", fmt.Errorf("count daily entity executions: %w", err)
		}

		if count >= wf.RateLimitPerEntityPerDay {
			return false, fmt.Sprintf("per-entity daily rate limit reached (%d/d)", wf.RateLimitPerEntityPerDay), nil
		}
	}

	return true, "", nil
}

// RedisRateLimiter enforces limits with atomic Redis counters, one key per
// window. Unlike the ledger counts this is a hard limit under concurrency:
// the INCR that crosses the threshold loses, regardless of interleaving.
type RedisRateLimiter struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisRateLimiter(client redis.UniversalClient) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, now: time.Now}
}

// WithClock replaces the clock, for tests.
func (r *RedisRateLimiter) WithClock(now func() time.Time) *RedisRateLimiter {
	r.now = now

	return r
}

func (r *RedisRateLimiter) Allow(ctx context.Context, wf *models.Workflow, entityID string) (bool, string, error) {
	now := r.now().UTC()

	if wf.RateLimitPerHour > 0 {
		key := fmt.Sprintf("caseflow:ratelimit:wf:%s:hour:%s", wf.ID, now.Format("2006010215"))

		over, err := r.bump(ctx, key, int64(wf.RateLimitPerHour), 2*time.Hour)
		if err != nil {
			return false, "", err
		}

		if over {
			return false, fmt.Sprintf("hourly rate limit reached (%d/h)", wf.RateLimitPerHour), nil
		}
	}

	if wf.RateLimitPerEntityPerDay > 0 && entityID != "" {
		key := fmt.Sprintf("caseflow:ratelimit:wf:%s:entity:%s:day:%s", wf.ID, entityID, now.Format("20060102"))

		over, err := r.bump(ctx, key, int64(wf.RateLimitPerEntityPerDay), 48*time.Hour)
		if err != nil {
			return false, "", err
		}

		if over {
			return false, fmt.Sprintf("per-entity daily rate limit reached (%d/d)", wf.RateLimitPerEntityPerDay), nil
		}
	}

	return true, "", nil
}

func (r *RedisRateLimiter) bump(ctx context.Context, key string, limit int64, ttl time.Duration) (over bool, err error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("increment rate limit counter %s: %w", key, err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			return false, fmt.Errorf("set rate limit counter expiry %s: %w", key, err)
		}
	}

	return count > limit, nil
}
