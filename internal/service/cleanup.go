package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmynk/choremates/internal/apperr"
)

// CleanupJob expires stale pending invitations. Runs are idempotent and safe
// to overlap; the store performs the whole transition in one statement.
type CleanupJob struct {
	deps Deps
}

// NewCleanupJob creates a new CleanupJob.
func NewCleanupJob(deps Deps) *CleanupJob {
	return &CleanupJob{deps: deps.withDefaults()}
}

// Run performs one cleanup pass and returns how many invitations expired.
func (j *CleanupJob) Run(ctx context.Context) (int, error) {
	n, err := j.deps.Store.CleanupExpiredInvitations(ctx, j.deps.Now().UTC())
	if err != nil {
		j.deps.Metrics.CleanupRuns.WithLabelValues("error").Inc()
		slog.Error("Invitation cleanup failed", "error", err)
		return 0, apperr.Persistence("CleanupExpiredInvitations", err)
	}

	j.deps.Metrics.CleanupRuns.WithLabelValues("ok").Inc()
	j.deps.Metrics.InvitationsExpired.Add(float64(n))
	if n > 0 {
		slog.Info("Expired stale invitations", "count", n)
	} else {
		slog.Debug("Invitation cleanup found nothing to expire")
	}
	return n, nil
}

// Start runs the job immediately and then every interval until ctx is done.
// Failed runs are logged and retried on the next tick.
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Invitation cleanup scheduled", "interval", interval)
	for {
		_, _ = j.Run(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
