package governor

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/relayci/fixpipeline/internal/config"
)

func newTestGovernor(t *testing.T, cfg config.GovernorConfig) (*Governor, *miniredis.Miniredis) {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(srv.Close)

	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	log := logrus.New()
	log.SetOutput(os.Stdout)
	return New(client, cfg, log), srv
}

func TestAdmit_AllowsFreshRun(t *testing.T) {
	g, _ := newTestGovernor(t, config.GovernorConfig{MaxAttempts: 5, RepoConcurrencyLimit: 2})
	result := g.Admit(context.Background(), AdmitRequest{RunKey: "run-1", Repo: "acme/demo"})
	if result.Verdict != VerdictAllow {
		t.Fatalf("Verdict = %q, want allow", result.Verdict)
	}
}

func TestAdmit_SecondConcurrentAttemptIsAlreadyRunning(t *testing.T) {
	g, _ := newTestGovernor(t, config.GovernorConfig{MaxAttempts: 5, RepoConcurrencyLimit: 5})
	ctx := context.Background()

	first := g.Admit(ctx, AdmitRequest{RunKey: "run-1", Repo: "acme/demo"})
	if first.Verdict != VerdictAllow {
		t.Fatalf("first Verdict = %q, want allow", first.Verdict)
	}
	second := g.Admit(ctx, AdmitRequest{RunKey: "run-1", Repo: "acme/demo"})
	if second.Verdict != VerdictAlreadyRunning {
		t.Fatalf("second Verdict = %q, want already_running", second.Verdict)
	}
}

func TestAdmit_CooldownBlocksBeforeElapsed(t *testing.T) {
	g, _ := newTestGovernor(t, config.GovernorConfig{MaxAttempts: 5, CooldownPeriod: time.Minute})
	result := g.Admit(context.Background(), AdmitRequest{
		RunKey: "run-1", Repo: "acme/demo", AttemptCount: 1, LastUpdated: time.Now(),
	})
	if result.Verdict != VerdictRetryable {
		t.Fatalf("Verdict = %q, want retryable", result.Verdict)
	}
	if result.Countdown <= 0 || result.Countdown > time.Minute {
		t.Fatalf("Countdown = %v, want in (0, 1m]", result.Countdown)
	}
}

func TestAdmit_CooldownAllowsAfterElapsed(t *testing.T) {
	g, _ := newTestGovernor(t, config.GovernorConfig{MaxAttempts: 5, CooldownPeriod: time.Minute})
	result := g.Admit(context.Background(), AdmitRequest{
		RunKey: "run-1", Repo: "acme/demo", AttemptCount: 1, LastUpdated: time.Now().Add(-2 * time.Minute),
	})
	if result.Verdict != VerdictAllow {
		t.Fatalf("Verdict = %q, want allow", result.Verdict)
	}
}

func TestAdmit_MaxAttemptsBlocksTerminally(t *testing.T) {
	g, _ := newTestGovernor(t, config.GovernorConfig{MaxAttempts: 3})
	result := g.Admit(context.Background(), AdmitRequest{RunKey: "run-1", Repo: "acme/demo", AttemptCount: 3})
	if result.Verdict != VerdictBlocked {
		t.Fatalf("Verdict = %q, want blocked", result.Verdict)
	}
	if result.BlockedReason != "max_attempts" {
		t.Fatalf("BlockedReason = %q, want max_attempts", result.BlockedReason)
	}
}

func TestAdmit_RepoConcurrencyLimitIsRetryable(t *testing.T) {
	g, _ := newTestGovernor(t, config.GovernorConfig{
		MaxAttempts: 5, RepoConcurrencyLimit: 1, BackoffBase: time.Second, BackoffMax: time.Minute,
	})
	ctx := context.Background()

	first := g.Admit(ctx, AdmitRequest{RunKey: "run-1", Repo: "acme/demo"})
	if first.Verdict != VerdictAllow {
		t.Fatalf("first Verdict = %q, want allow", first.Verdict)
	}
	second := g.Admit(ctx, AdmitRequest{RunKey: "run-2", Repo: "acme/demo"})
	if second.Verdict != VerdictRetryable {
		t.Fatalf("second Verdict = %q, want retryable", second.Verdict)
	}
	if second.Countdown <= 0 {
		t.Fatalf("expected a positive backoff, got %v", second.Countdown)
	}
}

func TestAdmit_FailsOpenWhenRedisUnreachable(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	srv.Close() // simulate a coordinator outage

	log := logrus.New()
	log.SetOutput(os.Stdout)
	g := New(client, config.GovernorConfig{MaxAttempts: 5}, log)

	result := g.Admit(context.Background(), AdmitRequest{RunKey: "run-1", Repo: "acme/demo"})
	if result.Verdict != VerdictAllow || !result.FailedOpen {
		t.Fatalf("expected fail-open allow, got %+v", result)
	}
}

func TestRelease_FreesLockAndSlotForNextAttempt(t *testing.T) {
	g, _ := newTestGovernor(t, config.GovernorConfig{MaxAttempts: 5, RepoConcurrencyLimit: 1})
	ctx := context.Background()

	first := g.Admit(ctx, AdmitRequest{RunKey: "run-1", Repo: "acme/demo"})
	if first.Verdict != VerdictAllow {
		t.Fatalf("first Verdict = %q, want allow", first.Verdict)
	}
	g.Release(ctx, "run-1", "acme/demo")

	second := g.Admit(ctx, AdmitRequest{RunKey: "run-1", Repo: "acme/demo"})
	if second.Verdict != VerdictAllow {
		t.Fatalf("second Verdict after release = %q, want allow", second.Verdict)
	}
}
