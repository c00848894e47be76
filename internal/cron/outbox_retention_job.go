package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	outboxRetentionDays = 30
	outboxMinAttempts   = 10
	dlqRetentionFactor  = 3
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxRetentionRepo
	DLQ         dlqRetentionRepo
	Retention   int
	MinAttempts int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type dlqRetentionRepo interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob builds the job that trims outbox_events and outbox_dlq.
// Parked rows outlive published ones by dlqRetentionFactor.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Repository == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	minAttempts := params.MinAttempts
	if minAttempts <= 0 {
		minAttempts = outboxMinAttempts
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		dlq:         params.DLQ,
		retention:   retention,
		minAttempts: minAttempts,
		now:         time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxRetentionRepo
	dlq         dlqRetentionRepo
	retention   int
	minAttempts int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// retentionWindow is the pair of cutoffs for one run.
type retentionWindow struct {
	events time.Time
	dlq    time.Time
}

func (j *outboxRetentionJob) window() retentionWindow {
	now := j.now().UTC()
	days := func(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }
	return retentionWindow{
		events: now.Add(-days(j.retention)),
		dlq:    now.Add(-days(j.retention * dlqRetentionFactor)),
	}
}

// Run deletes both tables in one transaction so a failure leaves neither half
// purged.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	win := j.window()
	var events, parked int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		if events, err = j.repo.DeletePublishedBefore(ctx, tx, win.events, j.minAttempts); err != nil {
			return fmt.Errorf("outbox events: %w", err)
		}
		if j.dlq == nil {
			return nil
		}
		if parked, err = j.dlq.DeleteFailedBefore(ctx, tx, win.dlq); err != nil {
			return fmt.Errorf("outbox dlq: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"events_cutoff":  win.events,
		"dlq_cutoff":     win.dlq,
		"min_attempts":   j.minAttempts,
		"events_deleted": events,
		"dlq_deleted":    parked,
	}), "cron.outbox_retention.complete")
	return nil
}
