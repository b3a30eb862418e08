package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized},
		{code: CodeForbidden, status: http.StatusForbidden},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeConflict, status: http.StatusConflict},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
		{code: CodeReservation, status: http.StatusServiceUnavailable, retryable: true},
		{code: CodePaymentInitiation, status: http.StatusBadGateway, retryable: true},
		{code: CodePaymentAbandoned, status: http.StatusConflict, retryable: true},
		{code: CodeOrderUnsaved, status: http.StatusInternalServerError, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("code %s missing public message", tt.code)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestOrderUnsavedIsNeverRetryable(t *testing.T) {
	err := Wrap(CodeOrderUnsaved, stdErrors.New("db down"), "persist order")
	if IsRetryable(err) {
		t.Fatal("order unsaved must not be retryable")
	}
	if !IsRetryable(New(CodeReservation, "counter busy")) {
		t.Fatal("reservation failures should be retryable")
	}
	if IsRetryable(stdErrors.New("plain")) {
		t.Fatal("untyped errors are not retryable")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := fmt.Errorf("outer: %w", Wrap(CodeDependency, cause, "redis"))

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be discoverable")
	}
	if !HasCode(err, CodeDependency) {
		t.Fatal("expected dependency code in chain")
	}
	if HasCode(err, CodeInternal) {
		t.Fatal("unexpected internal code")
	}
}

func TestValidationDetails(t *testing.T) {
	err := Validation("checkout details incomplete", FieldErrors{"phone": "required"})
	fields, ok := err.Details().(FieldErrors)
	if !ok {
		t.Fatalf("expected field errors, got %T", err.Details())
	}
	if fields["phone"] != "required" {
		t.Fatalf("unexpected field details %v", fields)
	}
	if Validation("empty", nil).Details() != nil {
		t.Fatal("expected nil details without fields")
	}
}

func TestDumpIncludesChain(t *testing.T) {
	err := Wrap(CodeInternal, stdErrors.New("root"), "top")
	dump := Dump(err)
	if dump.Code != CodeInternal {
		t.Fatalf("unexpected code %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %v", dump.Chain)
	}
}

func TestDumpCapturesPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		Message:        "duplicate key value violates unique constraint",
		TableName:      "orders",
		ColumnName:     "order_number",
		ConstraintName: "orders_order_number_key",
	}
	dump := Dump(Wrap(CodeConflict, fmt.Errorf("insert order: %w", pgErr), "order exists"))

	if dump.PGCode != "23505" || dump.PGTable != "orders" || dump.PGColumn != "order_number" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if dump.PGMessage != pgErr.Message {
		t.Fatalf("expected pg message %q, got %q", pgErr.Message, dump.PGMessage)
	}
	if dump.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", dump.Code)
	}
}
