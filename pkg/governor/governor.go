package governor

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/relayci/fixpipeline/internal/config"
	"github.com/relayci/fixpipeline/internal/pipelineerrors"
)

const slotAcquireScript = `
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
  return 0
end
redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return 1
`

func lockKey(runKey string) string { return "fixpipeline:lock:" + runKey }
func slotKey(repo string) string   { return "fixpipeline:slot:" + repo }

// Governor evaluates the four admission gates from spec.md §4.11 against
// a shared Redis instance. An unreachable Redis fails open: Admit
// returns VerdictAllow with FailedOpen=true rather than blocking
// liveness, per §5's "On any coordinator outage the governor fails open".
type Governor struct {
	redis *redis.Client
	cfg   config.GovernorConfig
	log   *logrus.Logger
}

func New(client *redis.Client, cfg config.GovernorConfig, log *logrus.Logger) *Governor {
	return &Governor{redis: client, cfg: cfg, log: log}
}

// Admit evaluates max attempts, cooldown, the run_key idempotency lock,
// and the per-repo concurrency slot, in that order; the comments below
// keep the gate numbers of spec.md §4.11. A VerdictAllow without
// FailedOpen has already acquired both the run_key lock and a repo slot;
// the caller must call Release when the orchestrator run finishes.
func (g *Governor) Admit(ctx context.Context, req AdmitRequest) AdmitResult {
	// Gate 3: max attempts, checked before any Redis call since it needs
	// no shared state.
	if req.AttemptCount >= g.cfg.MaxAttempts && g.cfg.MaxAttempts > 0 {
		return AdmitResult{Verdict: VerdictBlocked, BlockedReason: "max_attempts"}
	}

	// Gate 2: cooldown.
	if req.AttemptCount > 0 && g.cfg.CooldownPeriod > 0 {
		elapsed := time.Since(req.LastUpdated)
		if elapsed < g.cfg.CooldownPeriod {
			return AdmitResult{Verdict: VerdictRetryable, Countdown: g.cfg.CooldownPeriod - elapsed}
		}
	}

	// Gate 1: idempotency lock.
	locked, err := g.tryLock(ctx, req.RunKey)
	if err != nil {
		g.log.WithError(err).Warn("governor: redis unavailable for lock acquisition, failing open")
		return AdmitResult{Verdict: VerdictAllow, FailedOpen: true}
	}
	if !locked {
		return AdmitResult{Verdict: VerdictAlreadyRunning}
	}

	// Gate 4: per-repo concurrency slot.
	acquired, err := g.acquireSlot(ctx, req.Repo)
	if err != nil {
		g.log.WithError(err).Warn("governor: redis unavailable for slot acquisition, failing open")
		return AdmitResult{Verdict: VerdictAllow, FailedOpen: true}
	}
	if !acquired {
		_ = g.releaseLock(ctx, req.RunKey)
		backoff := (&pipelineerrors.TransientError{
			Attempt: req.AttemptCount + 1, BaseDelay: g.cfg.BackoffBase, MaxDelay: g.cfg.BackoffMax,
		}).Backoff()
		return AdmitResult{Verdict: VerdictRetryable, Countdown: backoff}
	}

	return AdmitResult{Verdict: VerdictAllow}
}

// Release gives back whatever Admit acquired for a VerdictAllow outcome.
// Safe to call unconditionally; releasing an unheld lock/slot is a no-op.
func (g *Governor) Release(ctx context.Context, runKey, repo string) {
	if err := g.releaseLock(ctx, runKey); err != nil && g.log != nil {
		g.log.WithError(err).Warn("governor: failed to release run_key lock")
	}
	if err := g.releaseSlot(ctx, repo); err != nil && g.log != nil {
		g.log.WithError(err).Warn("governor: failed to release repo slot")
	}
}

func (g *Governor) tryLock(ctx context.Context, runKey string) (bool, error) {
	ttl := g.cfg.CooldownPeriod
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return g.redis.SetNX(ctx, lockKey(runKey), "1", ttl).Result()
}

func (g *Governor) releaseLock(ctx context.Context, runKey string) error {
	return g.redis.Del(ctx, lockKey(runKey)).Err()
}

func (g *Governor) acquireSlot(ctx context.Context, repo string) (bool, error) {
	limit := g.cfg.RepoConcurrencyLimit
	if limit <= 0 {
		limit = 1
	}
	ttlSeconds := int((g.cfg.CooldownPeriod + time.Hour).Seconds())
	res, err := g.redis.Eval(ctx, slotAcquireScript, []string{slotKey(repo)}, limit, ttlSeconds).Result()
	if err != nil {
		return false, fmt.Errorf("governor: slot acquire script failed: %w", err)
	}
	n, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("governor: unexpected slot script result type %T", res)
	}
	return n == 1, nil
}

func (g *Governor) releaseSlot(ctx context.Context, repo string) error {
	n, err := g.redis.Decr(ctx, slotKey(repo)).Result()
	if err != nil {
		return err
	}
	if n < 0 {
		return g.redis.Set(ctx, slotKey(repo), 0, 0).Err()
	}
	return nil
}
