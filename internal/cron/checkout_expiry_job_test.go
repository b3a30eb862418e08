package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func TestCheckoutExpiryJobPrunesAbandonedAndFinished(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeAttemptPruner{}
	job := newCheckoutExpiryJob(t, repo)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(repo.calls) != 2 {
		t.Fatalf("expected two delete calls, got %d", len(repo.calls))
	}

	abandoned := repo.calls[0]
	if !abandoned.before.Equal(now) {
		t.Fatalf("unexpected abandoned cutoff %s", abandoned.before)
	}
	if len(abandoned.states) != 2 || abandoned.states[0] != enums.CheckoutStateDetailsEntry || abandoned.states[1] != enums.CheckoutStateReview {
		t.Fatalf("unexpected abandoned states %v", abandoned.states)
	}

	finished := repo.calls[1]
	if !finished.before.Equal(now.Add(-defaultFinishedAttemptRetention)) {
		t.Fatalf("unexpected finished cutoff %s", finished.before)
	}
	for _, state := range append(abandoned.states, finished.states...) {
		if state == enums.CheckoutStateAwaitingPayment {
			t.Fatal("attempts awaiting payment must never be pruned")
		}
	}
}

func TestCheckoutExpiryJobRunsBothPassesOnError(t *testing.T) {
	repo := &fakeAttemptPruner{err: errors.New("db down")}
	job := newCheckoutExpiryJob(t, repo)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(repo.calls) != 2 {
		t.Fatalf("expected both passes to run, got %d", len(repo.calls))
	}
}

func newCheckoutExpiryJob(t *testing.T, repo *fakeAttemptPruner) *checkoutExpiryJob {
	t.Helper()
	jobIface, err := NewCheckoutExpiryJob(CheckoutExpiryJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewCheckoutExpiryJob: %v", err)
	}
	return jobIface.(*checkoutExpiryJob)
}

type pruneCall struct {
	before time.Time
	states []enums.CheckoutState
}

type fakeAttemptPruner struct {
	calls []pruneCall
	err   error
}

func (f *fakeAttemptPruner) DeleteExpired(ctx context.Context, before time.Time, states []enums.CheckoutState) (int64, error) {
	f.calls = append(f.calls, pruneCall{before: before, states: states})
	if f.err != nil {
		return 0, f.err
	}
	return 2, nil
}
