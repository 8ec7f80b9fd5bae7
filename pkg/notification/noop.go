package notification

import "context"

// NoopNotifier discards every event. It's the default when no channel is
// configured, so the orchestrator's "notify exactly once" contract holds
// even in deployments that haven't wired a real notifier yet.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, Event) error { return nil }
