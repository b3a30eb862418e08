package notifications

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mail"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Mailer composes and sends the storefront's transactional emails.
type Mailer struct {
	sender       mail.Sender
	store        config.StoreConfig
	contactInbox string
	logg         *logger.Logger
	now          func() time.Time
}

// NewMailer builds the mailer. Contact messages are copied to contactInbox,
// falling back to the store email.
func NewMailer(sender mail.Sender, store config.StoreConfig, contactInbox string, logg *logger.Logger) (*Mailer, error) {
	if sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mail sender is required")
	}
	inbox := strings.TrimSpace(contactInbox)
	if inbox == "" {
		inbox = store.Email
	}
	return &Mailer{sender: sender, store: store, contactInbox: inbox, logg: logg, now: time.Now}, nil
}

type emailLine struct {
	Title    string
	Options  []string
	Quantity int
	Amount   string
}

type orderEmail struct {
	Store        config.StoreConfig
	Order        *types.OrderRecord
	OrderDate    string
	Lines        []emailLine
	Currency     string
	Subtotal     string
	DiscountCode string
	Discount     string
	Tax          string
	Shipping     string
	Total        string
	InvoiceReady bool
	Year         int
}

// SendOrderConfirmation emails the order summary to the customer.
func (m *Mailer) SendOrderConfirmation(ctx context.Context, order *types.OrderRecord) error {
	if order == nil {
		return pkgerrors.Validation("Missing order details", pkgerrors.FieldErrors{"orderDetails": "is required"})
	}
	email := strings.TrimSpace(order.CustomerInfo.Email)
	if email == "" {
		return pkgerrors.Validation("Missing customer email", pkgerrors.FieldErrors{"orderDetails.customerInfo.email": "is required"})
	}

	data := orderEmail{
		Store:        m.store,
		Order:        order,
		OrderDate:    order.OrderDate.Format("January 2, 2006"),
		Currency:     string(order.Payment.Currency),
		Subtotal:     order.TotalBeforeDiscount.StringFixed(2),
		DiscountCode: order.DiscountCode,
		Discount:     order.DiscountValue.StringFixed(2),
		Tax:          order.Tax.StringFixed(2),
		Shipping:     order.ShippingCost.StringFixed(2),
		Total:        order.Total.StringFixed(2),
		InvoiceReady: order.InvoiceRef != "",
		Year:         m.now().Year(),
	}
	for _, line := range order.CartItems {
		options := make([]string, 0, len(line.Options))
		for _, opt := range line.Options {
			options = append(options, opt.Name+": "+opt.Value)
		}
		data.Lines = append(data.Lines, emailLine{
			Title:    line.Title,
			Options:  options,
			Quantity: line.Quantity,
			Amount:   line.LineTotal().StringFixed(2),
		})
	}

	var body bytes.Buffer
	if err := orderConfirmationHTML.Execute(&body, data); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render order confirmation")
	}

	msg := mail.Message{
		To:      []mail.Address{{Name: order.CustomerInfo.Name, Email: email}},
		Subject: fmt.Sprintf("Your %s Order %s Confirmation", m.store.Name, order.OrderNumber),
		HTML:    body.String(),
		Text:    fmt.Sprintf("Hi %s, we received your order %s. Total: %s %s.", order.CustomerInfo.Name, order.OrderNumber, data.Currency, data.Total),
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send order confirmation")
	}
	if m.logg != nil {
		m.logg.Info(m.logg.WithOrderNumber(ctx, order.OrderNumber), "order confirmation sent")
	}
	return nil
}

// SendContactConfirmation notifies the store inbox and acknowledges the sender.
func (m *Mailer) SendContactConfirmation(ctx context.Context, form *types.ContactForm) error {
	if form == nil {
		return pkgerrors.Validation("Missing form details", pkgerrors.FieldErrors{"formDetails": "is required"})
	}
	fields := pkgerrors.FieldErrors{}
	if strings.TrimSpace(form.Email) == "" {
		fields["formDetails.email"] = "is required"
	}
	if strings.TrimSpace(form.Message) == "" {
		fields["formDetails.message"] = "is required"
	}
	if len(fields) > 0 {
		return pkgerrors.Validation("Missing form details", fields)
	}

	var admin bytes.Buffer
	if err := contactAdminHTML.Execute(&admin, form); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render contact notification")
	}
	var user bytes.Buffer
	if err := contactUserHTML.Execute(&user, struct {
		Form  *types.ContactForm
		Store config.StoreConfig
	}{form, m.store}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render contact acknowledgement")
	}

	replyTo := mail.Address{Name: form.Name, Email: form.Email}
	messages := []mail.Message{
		{
			To:      []mail.Address{{Name: m.store.Name, Email: m.contactInbox}},
			ReplyTo: &replyTo,
			Subject: "New contact message from " + form.Name,
			HTML:    admin.String(),
		},
		{
			To:      []mail.Address{{Name: form.Name, Email: form.Email}},
			Subject: "We received your message - " + m.store.Name,
			HTML:    user.String(),
		},
	}
	for _, msg := range messages {
		if err := m.sender.Send(ctx, msg); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send contact email")
		}
	}
	return nil
}
