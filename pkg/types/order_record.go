package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderRecord is the order snapshot exchanged between the storefront API and
// the invoice and mail endpoints.
type OrderRecord struct {
	ID                  uuid.UUID            `json:"id"`
	OrderNumber         string               `json:"orderNumber"`
	OrderDate           time.Time            `json:"orderDate"`
	UserID              uuid.UUID            `json:"userId"`
	CustomerInfo        CustomerInfo         `json:"customerInfo"`
	CartItems           OrderLines           `json:"cartItems"`
	TotalBeforeDiscount decimal.Decimal      `json:"totalBeforeDiscount"`
	DiscountCode        string               `json:"discountCode,omitempty"`
	DiscountValue       decimal.Decimal      `json:"discountValue"`
	Subtotal            decimal.Decimal      `json:"subtotal"`
	Tax                 decimal.Decimal      `json:"tax"`
	ShippingMethod      enums.ShippingMethod `json:"shippingMethod"`
	ShippingCost        decimal.Decimal      `json:"shippingCost"`
	Total               decimal.Decimal      `json:"total"`
	Payment             PaymentResult        `json:"payment"`
	Status              enums.OrderStatus    `json:"status"`
	InvoiceRef          string               `json:"invoiceRef,omitempty"`
	SentFrom            string               `json:"sentFrom"`
}

// ContactForm is a contact submission relayed to the mail endpoint.
type ContactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message"`
}
