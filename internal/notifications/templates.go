package notifications

import (
	"html/template"
	"strings"
)

var funcs = template.FuncMap{
	"join": strings.Join,
}

var orderConfirmationHTML = template.Must(template.New("order_confirmation").Funcs(funcs).Parse(`
<div style="font-family: 'Helvetica Neue', Arial, sans-serif; background-color: #f8f8f8; padding: 20px;">
  <div style="max-width: 600px; margin: auto; background: #fff; border-radius: 12px; overflow: hidden;">
    <div style="text-align: center; padding: 20px;">
      <h1 style="color: #333; margin: 0;">{{.Store.Name}}</h1>
      <p style="color: #888;">Thank you for your order!</p>
    </div>
    <div style="padding: 0 25px 30px 25px;">
      <h2 style="color: #333; text-align: center;">Order Confirmation</h2>
      <p style="color: #666; font-size: 14px; line-height: 1.6;">
        Hi <strong>{{.Order.CustomerInfo.Name}}</strong>,<br>
        We're delighted to confirm your order <strong>{{.Order.OrderNumber}}</strong> placed on <strong>{{.OrderDate}}</strong>.<br>
        You will receive another email when your order ships.
      </p>
      <table style="width: 100%; border-collapse: collapse; margin-bottom: 20px;">
        <thead>
          <tr>
            <th style="text-align: left; border-bottom: 2px solid #eee; padding: 8px;">Item</th>
            <th style="text-align: right; border-bottom: 2px solid #eee; padding: 8px;">Price</th>
          </tr>
        </thead>
        <tbody>
          {{range .Lines}}
          <tr>
            <td style="padding: 8px; border-bottom: 1px solid #f1f1f1;">{{.Title}}{{if .Options}} ({{join .Options ", "}}){{end}} x {{.Quantity}}</td>
            <td style="padding: 8px; text-align: right; border-bottom: 1px solid #f1f1f1;">{{.Amount}}</td>
          </tr>
          {{end}}
        </tbody>
      </table>
      <table style="width: 100%; color: #333; border-collapse: collapse;">
        <tr><td style="text-align: right; padding: 4px;"><strong>Subtotal:</strong></td><td style="text-align: right; padding: 4px;">{{.Currency}} {{.Subtotal}}</td></tr>
        {{if .DiscountCode}}<tr><td style="text-align: right; padding: 4px;"><strong>Discount ({{.DiscountCode}}):</strong></td><td style="text-align: right; padding: 4px;">{{.Currency}} - {{.Discount}}</td></tr>{{end}}
        <tr><td style="text-align: right; padding: 4px;"><strong>GST:</strong></td><td style="text-align: right; padding: 4px;">{{.Currency}} {{.Tax}}</td></tr>
        <tr><td style="text-align: right; padding: 4px;"><strong>Shipping:</strong></td><td style="text-align: right; padding: 4px;">{{.Currency}} {{.Shipping}}</td></tr>
        <tr><td style="text-align: right; padding: 8px 4px; font-size: 18px;"><strong>Total:</strong></td><td style="text-align: right; padding: 8px 4px; font-size: 18px;">{{.Currency}} {{.Total}}</td></tr>
      </table>
      {{if .Order.CustomerInfo.Notes}}<p style="margin-top: 20px; color: #666; font-size: 15px;">Special Instructions: {{.Order.CustomerInfo.Notes}}</p>{{end}}
      {{if .InvoiceReady}}<p style="color: #666; font-size: 14px;">Your invoice is available from the order page in your account.</p>{{end}}
      <p style="margin-top: 35px; color: #666; font-size: 14px; line-height: 1.6;">
        For assistance visit <a href="{{.Store.ContactURL}}" style="color: #d17b49;">{{.Store.ContactURL}}</a> or write to {{.Store.SupportEmail}}.
      </p>
      <p style="color: #666; font-size: 14px;">This is a system generated email. Replies are not monitored.</p>
    </div>
    <div style="background-color: #f9f4ef; text-align: center; padding: 20px;">
      <p style="color: #777; font-size: 13px; margin: 0;">&copy; {{.Year}} {{.Store.Name}} &middot; All rights reserved</p>
    </div>
  </div>
</div>
`))

var contactAdminHTML = template.Must(template.New("contact_admin").Parse(`
<div style="font-family: 'Segoe UI', Roboto, Arial, sans-serif; color: #333; max-width: 600px; margin: 32px auto;">
  <h1 style="font-size: 1.15em; letter-spacing: 2px;">New contact message</h1>
  <table style="width: 100%;">
    <tr><td style="color: #8aa4af; width: 100px; font-weight: 600;">Name</td><td>{{.Name}}</td></tr>
    <tr><td style="color: #8aa4af; font-weight: 600;">Email</td><td>{{.Email}}</td></tr>
    {{if .Phone}}<tr><td style="color: #8aa4af; font-weight: 600;">Phone</td><td>{{.Phone}}</td></tr>{{end}}
  </table>
  <div style="background: #f1f7fb; border-radius: 7px; padding: 12px; margin-top: 10px;">{{.Message}}</div>
</div>
`))

var contactUserHTML = template.Must(template.New("contact_user").Parse(`
<div style="font-family: 'Segoe UI', Roboto, Arial, sans-serif; color: #333; max-width: 600px; margin: 32px auto;">
  <p>Hi <strong>{{.Form.Name}}</strong>,</p>
  <p>Thank you for reaching out to {{.Store.Name}}. We received your message and will get back to you shortly.</p>
  <div style="background: #f1f7fb; border-radius: 7px; padding: 12px; margin-top: 10px;">{{.Form.Message}}</div>
  <p style="color: #666; font-size: 14px;">{{.Store.Name}} &middot; {{.Store.SupportEmail}}</p>
</div>
`))
