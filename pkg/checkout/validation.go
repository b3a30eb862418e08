package checkout

import (
	"net/mail"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// DetailsInput is what the customer must supply before reviewing an order.
type DetailsInput struct {
	Name              string
	Email             string
	Phone             string
	ShippingAddressID uuid.UUID
	TermsAccepted     bool
}

// ValidateDetails reports every missing or malformed contact field at once.
func ValidateDetails(in DetailsInput) error {
	fields := pkgerrors.FieldErrors{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "name is required"
	}
	if strings.TrimSpace(in.Phone) == "" {
		fields["phone"] = "phone is required"
	} else if !validPhone(in.Phone) {
		fields["phone"] = "phone must contain 7 to 15 digits"
	}
	if email := strings.TrimSpace(in.Email); email == "" {
		fields["email"] = "email is required"
	} else if _, err := mail.ParseAddress(email); err != nil {
		fields["email"] = "email is invalid"
	}
	if in.ShippingAddressID == uuid.Nil {
		fields["shippingAddressId"] = "select a shipping address"
	}
	if !in.TermsAccepted {
		fields["termsAccepted"] = "terms must be accepted"
	}
	if len(fields) == 0 {
		return nil
	}
	return pkgerrors.Validation("checkout details incomplete", fields)
}

// ValidateLines rejects carts that cannot be priced or paid for.
func ValidateLines(lines types.OrderLines) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	fields := pkgerrors.FieldErrors{}
	for _, line := range lines {
		if line.Quantity <= 0 {
			fields[line.ProductID.String()] = "quantity must be positive"
			continue
		}
		if line.Price.IsNegative() {
			fields[line.ProductID.String()] = "price must not be negative"
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return pkgerrors.Validation("cart contains invalid lines", fields)
}

func validPhone(raw string) bool {
	digits := 0
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}
