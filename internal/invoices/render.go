package invoices

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	pageLeft   = 50.0
	pageRight  = 550.0
	colQty     = 280.0
	colPrice   = 360.0
	colAmount  = 460.0
	rowHeight  = 20.0
	tableTop   = 320.0
	dateLayout = "January 2, 2006"
)

type totalRow struct {
	label string
	value string
}

// Renderer lays out invoice PDFs.
type Renderer struct {
	seller config.StoreConfig
}

// NewRenderer builds a renderer that prints seller as the "From" block.
func NewRenderer(seller config.StoreConfig) *Renderer {
	return &Renderer{seller: seller}
}

// Render produces the invoice PDF for order.
func (r *Renderer) Render(order types.OrderRecord) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetTitle("Invoice "+order.OrderNumber, true)
	pdf.SetAuthor(r.seller.Name, true)
	pdf.SetAutoPageBreak(true, 60)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 35)
	pdf.Text(pageLeft, 100, "INVOICE")
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetXY(350, 70)
	pdf.CellFormat(200, 20, tr(r.seller.Name), "", 0, "R", false, 0, "")

	pdf.SetFontSize(10)
	pdf.Text(pageLeft, 170, "Date:")
	pdf.Text(430, 170, "Order No.")
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(80, 170, order.OrderDate.Format(dateLayout))
	pdf.Text(480, 170, tr(order.OrderNumber))

	customer := order.CustomerInfo
	billed := append([]string{customer.Name}, customer.ShippingAddress.Lines()...)
	billed = append(billed, customer.Email)
	r.block(pdf, tr, pageLeft, 230, "Billed to:", billed)
	r.block(pdf, tr, 350, 230, "From:", []string{r.seller.Name, r.seller.AddressLine1, r.seller.AddressLine2, r.seller.Email})

	pdf.SetDrawColor(153, 153, 153)
	pdf.Line(pageLeft, tableTop, pageRight, tableTop)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(pageLeft, tableTop+17, "Item")
	r.right(pdf, colQty, tableTop+10, 50, "Qty")
	r.right(pdf, colPrice, tableTop+10, 80, "Price")
	r.right(pdf, colAmount, tableTop+10, 80, "Amount")
	pdf.Line(pageLeft, tableTop+25, pageRight, tableTop+25)

	y := tableTop + 35
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range order.CartItems {
		title := line.Title
		for _, opt := range line.Options {
			title += fmt.Sprintf(" / %s: %s", opt.Name, opt.Value)
		}
		pdf.SetXY(pageLeft, y)
		pdf.CellFormat(colQty-pageLeft, 12, tr(title), "", 0, "L", false, 0, "")
		r.right(pdf, colQty, y, 50, strconv.Itoa(line.Quantity))
		r.right(pdf, colPrice, y, 80, money(line.EffectiveUnitPrice()))
		r.right(pdf, colAmount, y, 80, money(line.LineTotal()))
		y += rowHeight
	}
	pdf.Line(pageLeft, y, pageRight, y)

	y += 10
	totals := []totalRow{{"Subtotal", money(order.TotalBeforeDiscount)}}
	if order.DiscountCode != "" {
		totals = append(totals, totalRow{fmt.Sprintf("Discount (%s)", order.DiscountCode), "- " + money(order.DiscountValue)})
	}
	totals = append(totals,
		totalRow{"GST", money(order.Tax)},
		totalRow{"Shipping", money(order.ShippingCost)},
	)
	for _, row := range totals {
		r.right(pdf, colPrice-40, y, 120, tr(row.label))
		r.right(pdf, colAmount, y, 80, row.value)
		y += 15
	}

	y += 15
	pdf.SetFont("Helvetica", "B", 12)
	r.right(pdf, colPrice, y, 80, "Total")
	r.right(pdf, colAmount, y, 80, string(order.Payment.Currency)+" "+money(order.Total))

	y += 40
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(pageLeft, y, "Payment Status:")
	pdf.Text(150, y, string(order.Payment.Status))
	y += 15
	pdf.Text(pageLeft, y, "Reference No.:")
	pdf.Text(150, y, order.Payment.PaymentOrderID)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(pageLeft, 600, "Note:")
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(90, 600, "Thank you for shopping with us!")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) block(pdf *fpdf.Fpdf, tr func(string) string, x, y float64, title string, lines []string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(x, y, title)
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range lines {
		if line == "" {
			continue
		}
		y += 15
		pdf.Text(x, y, tr(line))
	}
}

func (r *Renderer) right(pdf *fpdf.Fpdf, x, y, w float64, text string) {
	pdf.SetXY(x, y)
	pdf.CellFormat(w, 12, text, "", 0, "R", false, 0, "")
}

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}
