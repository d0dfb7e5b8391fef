package history

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-things/internal/thing"
)

// SinkName identifies the history sink in logs and metrics.
const SinkName = "history"

// Sink adapts a Repository to the notification dispatcher.
type Sink struct {
	repo *Repository
}

// NewSink creates a sink that records every delivered event.
func NewSink(repo *Repository) *Sink {
	return &Sink{repo: repo}
}

// Name implements notify.Sink.
func (s *Sink) Name() string { return SinkName }

// Deliver implements notify.Sink.
func (s *Sink) Deliver(ctx context.Context, ev thing.Event) error {
	return s.repo.Record(ctx, ev)
}

// Logger defines the logging interface used by the pruner.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Pruner periodically deletes history older than a retention period.
type Pruner struct {
	repo      *Repository
	retention time.Duration
	interval  time.Duration
	logger    Logger
}

// NewPruner creates a pruner. A nil logger discards output.
func NewPruner(repo *Repository, retention, interval time.Duration, logger Logger) *Pruner {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Pruner{repo: repo, retention: retention, interval: interval, logger: logger}
}

// Run prunes once per interval until ctx is cancelled. Failures are logged
// and retried on the next tick. It always returns nil.
func (p *Pruner) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := p.repo.Prune(ctx, p.retention)
			if err != nil {
				if ctx.Err() == nil {
					p.logger.Warn("pruning property history failed", "error", err)
				}
				continue
			}
			if n > 0 {
				p.logger.Info("pruned property history", "rows", n, "retention", p.retention.String())
			}
		}
	}
}
