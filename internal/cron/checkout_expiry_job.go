package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const defaultFinishedAttemptRetention = 7 * 24 * time.Hour

var (
	abandonedCheckoutStates = []enums.CheckoutState{
		enums.CheckoutStateDetailsEntry,
		enums.CheckoutStateReview,
	}
	finishedCheckoutStates = []enums.CheckoutState{
		enums.CheckoutStateOrderPersisted,
		enums.CheckoutStateInvoiced,
		enums.CheckoutStateNotified,
		enums.CheckoutStatePaymentFailed,
	}
)

type checkoutAttemptPruner interface {
	DeleteExpired(ctx context.Context, before time.Time, states []enums.CheckoutState) (int64, error)
}

// CheckoutExpiryJobParams configure the checkout attempt cleanup job.
type CheckoutExpiryJobParams struct {
	Logger     *logger.Logger
	Repository checkoutAttemptPruner
	// FinishedRetention keeps completed attempts around past their expiry.
	FinishedRetention time.Duration
}

// NewCheckoutExpiryJob builds the job that removes stale checkout attempts.
// Attempts still waiting on the payment gateway are never removed.
func NewCheckoutExpiryJob(params CheckoutExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	retention := params.FinishedRetention
	if retention <= 0 {
		retention = defaultFinishedAttemptRetention
	}
	return &checkoutExpiryJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type checkoutExpiryJob struct {
	logg      *logger.Logger
	repo      checkoutAttemptPruner
	retention time.Duration
	now       func() time.Time
}

func (j *checkoutExpiryJob) Name() string { return "checkout-expiry" }

func (j *checkoutExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()

	abandoned, abandonedErr := j.repo.DeleteExpired(ctx, now, abandonedCheckoutStates)
	if abandonedErr != nil {
		abandonedErr = fmt.Errorf("delete abandoned attempts: %w", abandonedErr)
	}
	finished, finishedErr := j.repo.DeleteExpired(ctx, now.Add(-j.retention), finishedCheckoutStates)
	if finishedErr != nil {
		finishedErr = fmt.Errorf("delete finished attempts: %w", finishedErr)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"abandoned_deleted": abandoned,
		"finished_deleted":  finished,
	})
	j.logg.Info(logCtx, "checkout attempt cleanup complete")
	return multierr.Combine(abandonedErr, finishedErr)
}
