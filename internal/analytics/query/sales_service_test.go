package query

import (
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestValidateRequest(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		req  types.SalesQueryRequest
		ok   bool
	}{
		{name: "valid window", req: types.SalesQueryRequest{Start: now, End: now.AddDate(0, 0, 30)}, ok: true},
		{name: "missing start", req: types.SalesQueryRequest{End: now}},
		{name: "end before start", req: types.SalesQueryRequest{Start: now, End: now.Add(-time.Hour)}},
		{name: "window too large", req: types.SalesQueryRequest{Start: now, End: now.AddDate(2, 0, 0)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRequest(tc.req)
			if tc.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestNewSalesServiceRequiresClient(t *testing.T) {
	if _, err := NewSalesService(nil); err == nil {
		t.Fatal("expected error without client")
	}
}
