package billing

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"github.com/khaledhikmat/scanbill-go/model"
)

// FormatCurrency renders an amount as US dollars rounded to cents.
func FormatCurrency(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return "-$" + amount.Neg().StringFixed(2)
	}
	return "$" + amount.StringFixed(2)
}

func Subject(bill model.Bill) string {
	return fmt.Sprintf("Your Receipt - Order #%s", bill.ID)
}

// RenderText renders the bill as a plain text table.
func RenderText(bill model.Bill) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Order #%s  %s", bill.ID, bill.CreatedAt.Format("2006-01-02 15:04")))
	t.AppendHeader(table.Row{"Item", "Qty", "Price", "Total"})
	for _, l := range bill.Lines {
		t.AppendRow(table.Row{l.Name, l.Quantity, FormatCurrency(l.UnitPrice), FormatCurrency(l.Total())})
	}
	t.AppendFooter(table.Row{"", "", "Subtotal", FormatCurrency(bill.Subtotal)})
	t.AppendFooter(table.Row{"", "", "Tax", FormatCurrency(bill.Tax)})
	t.AppendFooter(table.Row{"", "", "Total", FormatCurrency(bill.GrandTotal)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	t.SetStyle(table.StyleLight)
	return t.Render()
}

var receiptTemplate = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": FormatCurrency,
}).Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background-color: #6E59A5; padding: 20px; color: white;">
    <h1 style="margin: 0;">ScanBill Receipt</h1>
    <p>Order #{{.ID}}</p>
    <p>Date: {{.CreatedAt.Format "2006-01-02"}}</p>
  </div>
  <div style="padding: 20px;">
    <table style="width: 100%; border-collapse: collapse;">
      <thead>
        <tr><th>Item</th><th>Quantity</th><th>Price</th><th>Total</th></tr>
      </thead>
      <tbody>
        {{- range .Lines}}
        <tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{money .UnitPrice}}</td><td>{{money .Total}}</td></tr>
        {{- end}}
      </tbody>
      <tfoot>
        <tr><td colspan="3">Subtotal:</td><td>{{money .Subtotal}}</td></tr>
        <tr><td colspan="3">Tax:</td><td>{{money .Tax}}</td></tr>
        <tr><td colspan="3"><b>Total:</b></td><td><b>{{money .GrandTotal}}</b></td></tr>
      </tfoot>
    </table>
    <p style="margin-top: 30px; text-align: center; color: #666;">Thank you for your purchase!</p>
  </div>
</div>
`))

// RenderHTML renders the e-mail receipt body.
func RenderHTML(bill model.Bill) (string, error) {
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, bill); err != nil {
		return "", fmt.Errorf("error rendering receipt: %w", err)
	}
	return buf.String(), nil
}
