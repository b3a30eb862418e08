package functions

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Endpoint paths served by cmd/functions.
const (
	PathCreatePaymentOrder      = "/createPaymentOrder"
	PathGenerateInvoice         = "/generateInvoice"
	PathSendOrderConfirmation   = "/sendOrderConfirmation"
	PathSendContactConfirmation = "/sendContactConfirmation"
)

// CreatePaymentOrderRequest asks the gateway for a payment order. Amount is in major units.
type CreatePaymentOrderRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Receipt  string          `json:"receipt"`
}

// PaymentOrder is the gateway's payment order. Amount is in minor units.
type PaymentOrder struct {
	ID           string `json:"id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// OrderDetailsRequest carries an order snapshot to the invoice and mail endpoints.
type OrderDetailsRequest struct {
	OrderDetails *types.OrderRecord `json:"orderDetails"`
}

// InvoiceResult is the object path of a generated invoice.
type InvoiceResult struct {
	StoragePath string `json:"storagePath"`
}

// ContactRequest carries a contact form to the mail endpoint.
type ContactRequest struct {
	FormDetails *types.ContactForm `json:"formDetails"`
}

// SuccessResult acknowledges a mail send.
type SuccessResult struct {
	Success bool `json:"success"`
}

// ErrorResult is the body returned by an endpoint on failure.
type ErrorResult struct {
	Error string `json:"error"`
}
