package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// EventPruner deletes audit events older than a cutoff.
type EventPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob periodically removes expired audit events.
type RetentionJob struct {
	pruner    EventPruner
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

// NewRetentionJob schedules pruning on a standard five-field cron spec.
func NewRetentionJob(pruner EventPruner, retention time.Duration, spec string) (*RetentionJob, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}
	j := &RetentionJob{
		pruner:    pruner,
		retention: retention,
		cron:      cron.New(),
		now:       time.Now,
	}
	if _, err := j.cron.AddFunc(spec, func() { j.Prune(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", spec, err)
	}
	return j, nil
}

// Run starts the schedule. It does not block.
func (j *RetentionJob) Run() {
	log.Info().Dur("retention", j.retention).Msg("Starting audit retention job")
	j.cron.Start()
}

// Stop halts the schedule and waits for a running prune to finish.
func (j *RetentionJob) Stop() {
	<-j.cron.Stop().Done()
	log.Info().Msg("Stopped audit retention job")
}

// Prune deletes everything older than the retention window once.
func (j *RetentionJob) Prune(ctx context.Context) int64 {
	cutoff := j.now().Add(-j.retention)
	n, err := j.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Time("cutoff", cutoff).Msg("Failed to prune audit events")
		return 0
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Pruned audit events")
	}
	return n
}
