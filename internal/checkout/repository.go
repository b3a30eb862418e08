package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository persists checkout attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, attempt *models.CheckoutAttempt) error
	FindForUser(ctx context.Context, userID, id uuid.UUID) (*models.CheckoutAttempt, error)
	FindByPaymentOrderID(ctx context.Context, paymentOrderID string) (*models.CheckoutAttempt, error)
	// Transition moves the attempt from its current state to `to`, writing the
	// named columns alongside. It returns gorm.ErrRecordNotFound when the stored
	// attempt is no longer in the state the caller loaded.
	Transition(ctx context.Context, attempt *models.CheckoutAttempt, to enums.CheckoutState, columns ...string) error
	RecordError(ctx context.Context, id uuid.UUID, message string) error
	// MarkGatewayCaptured stamps the first time the gateway reported the payment captured.
	MarkGatewayCaptured(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteExpired(ctx context.Context, before time.Time, states []enums.CheckoutState) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an attempt repository backed by db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, attempt *models.CheckoutAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *repository) FindForUser(ctx context.Context, userID, id uuid.UUID) (*models.CheckoutAttempt, error) {
	var attempt models.CheckoutAttempt
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *repository) FindByPaymentOrderID(ctx context.Context, paymentOrderID string) (*models.CheckoutAttempt, error) {
	var attempt models.CheckoutAttempt
	err := r.db.WithContext(ctx).
		Where("payment_order_id = ?", paymentOrderID).
		Take(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *repository) Transition(ctx context.Context, attempt *models.CheckoutAttempt, to enums.CheckoutState, columns ...string) error {
	from := attempt.State
	attempt.State = to
	attempt.UpdatedAt = time.Now().UTC()

	selected := append([]string{"state", "updated_at"}, columns...)
	res := r.db.WithContext(ctx).
		Model(&models.CheckoutAttempt{}).
		Where("id = ? AND state = ?", attempt.ID, from).
		Select(selected).
		Updates(attempt)
	if res.Error == nil && res.RowsAffected == 0 {
		res.Error = gorm.ErrRecordNotFound
	}
	if res.Error != nil {
		attempt.State = from
		return res.Error
	}
	return nil
}

func (r *repository) RecordError(ctx context.Context, id uuid.UUID, message string) error {
	return r.db.WithContext(ctx).
		Model(&models.CheckoutAttempt{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_error": message, "updated_at": time.Now().UTC()}).
		Error
}

func (r *repository) MarkGatewayCaptured(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CheckoutAttempt{}).
		Where("id = ? AND gateway_captured_at IS NULL", id).
		Update("gateway_captured_at", at).
		Error
}

// DeleteExpired removes attempts past their expiry that are still in one of states.
func (r *repository) DeleteExpired(ctx context.Context, before time.Time, states []enums.CheckoutState) (int64, error) {
	if len(states) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("expires_at < ? AND state IN ?", before, states).
		Delete(&models.CheckoutAttempt{})
	return res.RowsAffected, res.Error
}
