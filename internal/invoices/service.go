package invoices

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/functions"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ContentType is the MIME type invoices are stored with.
const ContentType = "application/pdf"

// Uploader stores rendered invoices.
type Uploader interface {
	Upload(ctx context.Context, bucket, object, contentType string, data []byte) error
}

// Service renders invoices and stores them privately.
type Service struct {
	renderer *Renderer
	uploader Uploader
	bucket   string
	logg     *logger.Logger
	newID    func() uuid.UUID
}

// NewService builds the invoice service.
func NewService(renderer *Renderer, uploader Uploader, bucket string, logg *logger.Logger) (*Service, error) {
	if renderer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice renderer is required")
	}
	if uploader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice uploader is required")
	}
	return &Service{
		renderer: renderer,
		uploader: uploader,
		bucket:   bucket,
		logg:     logg,
		newID:    uuid.New,
	}, nil
}

// ObjectPath is where an order's invoice is stored.
func ObjectPath(userID uuid.UUID, orderNumber string, id uuid.UUID) string {
	return fmt.Sprintf("invoices/%s/invoice-%s-%s.pdf", userID, orderNumber, id)
}

// Generate renders and uploads the invoice, returning its storage path.
func (s *Service) Generate(ctx context.Context, order *types.OrderRecord) (*functions.InvoiceResult, error) {
	if order == nil {
		return nil, pkgerrors.Validation("Missing or invalid orderDetails", pkgerrors.FieldErrors{"orderDetails": "is required"})
	}
	if order.UserID == uuid.Nil {
		return nil, pkgerrors.Validation("Missing userId in orderDetails", pkgerrors.FieldErrors{"orderDetails.userId": "is required"})
	}
	if strings.TrimSpace(order.OrderNumber) == "" {
		return nil, pkgerrors.Validation("Missing orderNumber in orderDetails", pkgerrors.FieldErrors{"orderDetails.orderNumber": "is required"})
	}

	pdf, err := s.renderer.Render(*order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render invoice")
	}

	path := ObjectPath(order.UserID, order.OrderNumber, s.newID())
	if err := s.uploader.Upload(ctx, s.bucket, path, ContentType, pdf); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload invoice")
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderNumber(ctx, order.OrderNumber)
		s.logg.Info(s.logg.WithField(logCtx, "storage_path", path), "invoice generated")
	}
	return &functions.InvoiceResult{StoragePath: path}, nil
}
