package invoices

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type memUploader struct {
	bucket      string
	object      string
	contentType string
	data        []byte
	err         error
}

func (m *memUploader) Upload(_ context.Context, bucket, object, contentType string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.bucket, m.object, m.contentType, m.data = bucket, object, contentType, data
	return nil
}

func sampleRecord() *types.OrderRecord {
	code := "WELCOME10"
	return &types.OrderRecord{
		OrderNumber: "#K&K1001",
		OrderDate:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		UserID:      uuid.New(),
		CustomerInfo: types.CustomerInfo{
			Name:  "Asha Rao",
			Email: "asha@example.com",
			ShippingAddress: types.PostalAddress{
				Address: "12 MG Road", City: "Bengaluru", State: "Karnataka", PostalCode: "560001", Country: "India",
			},
		},
		CartItems: types.OrderLines{{
			Title:     "Soy Candle",
			UnitPrice: decimal.NewFromInt(500),
			Quantity:  2,
			Options:   types.OptionSelections{{Name: "Scent", Value: "Lavender"}},
		}},
		TotalBeforeDiscount: decimal.NewFromInt(1000),
		DiscountCode:        code,
		DiscountValue:       decimal.NewFromInt(100),
		Subtotal:            decimal.NewFromInt(900),
		Tax:                 decimal.NewFromInt(108),
		ShippingMethod:      enums.ShippingMethodStandard,
		ShippingCost:        decimal.NewFromInt(300),
		Total:               decimal.NewFromInt(1308),
		Payment:             types.PaymentResult{PaymentOrderID: "pi_1", Status: enums.PaymentStatusSuccess, Currency: enums.CurrencyINR},
		Status:              enums.OrderStatusProcessing,
	}
}

func TestGenerateUploadsPDF(t *testing.T) {
	uploader := &memUploader{}
	svc, err := NewService(NewRenderer(config.StoreConfig{Name: "Krafts & Knots"}), uploader, "bucket", nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	record := sampleRecord()

	result, err := svc.Generate(context.Background(), record)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	prefix := "invoices/" + record.UserID.String() + "/invoice-#K&K1001-"
	if !strings.HasPrefix(result.StoragePath, prefix) || !strings.HasSuffix(result.StoragePath, ".pdf") {
		t.Fatalf("unexpected path %q", result.StoragePath)
	}
	if uploader.object != result.StoragePath || uploader.bucket != "bucket" {
		t.Fatalf("upload target mismatch: %s/%s", uploader.bucket, uploader.object)
	}
	if uploader.contentType != ContentType {
		t.Fatalf("unexpected content type %q", uploader.contentType)
	}
	if !bytes.HasPrefix(uploader.data, []byte("%PDF")) {
		t.Fatal("upload is not a PDF")
	}
}

func TestGenerateValidatesOrder(t *testing.T) {
	svc, _ := NewService(NewRenderer(config.StoreConfig{}), &memUploader{}, "bucket", nil)

	_, err := svc.Generate(context.Background(), nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for nil order, got %v", err)
	}

	record := sampleRecord()
	record.UserID = uuid.Nil
	_, err = svc.Generate(context.Background(), record)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing user, got %v", err)
	}
}

func TestGenerateUploadFailure(t *testing.T) {
	svc, _ := NewService(NewRenderer(config.StoreConfig{}), &memUploader{err: errors.New("403")}, "bucket", nil)
	_, err := svc.Generate(context.Background(), sampleRecord())
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
