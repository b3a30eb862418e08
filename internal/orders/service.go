package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const defaultInvoiceURLExpiry = 15 * time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type invoiceSigner interface {
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
}

// Service exposes order history, detail and admin status changes.
type Service interface {
	ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	Get(ctx context.Context, viewer Viewer, orderNumber string) (*types.OrderRecord, error)
	InvoiceURL(ctx context.Context, viewer Viewer, orderNumber string) (*InvoiceLink, error)
	UpdateStatus(ctx context.Context, actor Viewer, orderNumber string, status enums.OrderStatus) (*types.OrderRecord, error)
}

// ServiceParams wires the order service dependencies.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Outbox    outbox.Emitter
	Signer    invoiceSigner
	Bucket    string
	URLExpiry time.Duration
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outbox.Emitter
	signer    invoiceSigner
	bucket    string
	urlExpiry time.Duration
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orders repository is required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction runner is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outbox emitter is required")
	}
	if params.Signer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice signer is required")
	}
	expiry := params.URLExpiry
	if expiry <= 0 {
		expiry = defaultInvoiceURLExpiry
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		outbox:    params.Outbox,
		signer:    params.Signer,
		bucket:    params.Bucket,
		urlExpiry: expiry,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Validation("invalid cursor", pkgerrors.FieldErrors{"cursor": "malformed cursor"})
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByUser(ctx, userID, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	page := &OrderList{Items: make([]OrderSummary, 0, len(rows))}
	if len(rows) > limit {
		last := rows[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.OrderDate, ID: last.ID})
		rows = rows[:limit]
	}
	for _, row := range rows {
		page.Items = append(page.Items, toSummary(row))
	}
	return page, nil
}

func (s *service) Get(ctx context.Context, viewer Viewer, orderNumber string) (*types.OrderRecord, error) {
	order, err := s.visibleOrder(ctx, viewer, orderNumber)
	if err != nil {
		return nil, err
	}
	record := ToRecord(*order)
	return &record, nil
}

func (s *service) InvoiceURL(ctx context.Context, viewer Viewer, orderNumber string) (*InvoiceLink, error) {
	order, err := s.visibleOrder(ctx, viewer, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.InvoicePath == nil || *order.InvoicePath == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not available yet")
	}
	url, err := s.signer.SignedReadURL(s.bucket, *order.InvoicePath, s.urlExpiry)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign invoice url")
	}
	return &InvoiceLink{URL: url, ExpiresAt: s.now().UTC().Add(s.urlExpiry)}, nil
}

func (s *service) UpdateStatus(ctx context.Context, actor Viewer, orderNumber string, status enums.OrderStatus) (*types.OrderRecord, error) {
	if !actor.IsAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.Validation("invalid status", pkgerrors.FieldErrors{"status": "unknown order status"})
	}
	number := NormalizeNumber(orderNumber)
	if number == "" {
		return nil, pkgerrors.Validation("order number is required", pkgerrors.FieldErrors{"orderNumber": "required"})
	}

	var updated *types.OrderRecord
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByNumber(ctx, number)
		if err != nil {
			return mapLookupErr(err)
		}
		if order.Status == status {
			record := ToRecord(*order)
			updated = &record
			return nil
		}
		if order.Status != enums.OrderStatusProcessing || status != enums.OrderStatusSuccess {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status cannot change").
				WithDetails(map[string]any{"from": order.Status, "to": status})
		}
		if err := repo.UpdateStatus(ctx, order.ID, order.Status, status); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		changedAt := s.now().UTC()
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(enums.UserRoleAdmin)},
			Data: payloads.OrderStatusChangedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				UserID:      order.UserID,
				From:        order.Status,
				To:          status,
				ChangedAt:   changedAt,
			},
			OccurredAt: changedAt,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit status change")
		}

		order.Status = status
		record := ToRecord(*order)
		updated = &record
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderNumber(ctx, number)
		s.logg.Info(s.logg.WithField(logCtx, "status", status), "order status updated")
	}
	return updated, nil
}

func (s *service) visibleOrder(ctx context.Context, viewer Viewer, orderNumber string) (*models.Order, error) {
	number := NormalizeNumber(orderNumber)
	if number == "" {
		return nil, pkgerrors.Validation("order number is required", pkgerrors.FieldErrors{"orderNumber": "required"})
	}
	order, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, mapLookupErr(err)
	}
	if !viewer.IsAdmin && order.UserID != viewer.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func mapLookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
