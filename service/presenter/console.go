package presenter

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/khaledhikmat/scanbill-go/billing"
	"github.com/khaledhikmat/scanbill-go/model"
)

type consoleService struct {
	mu sync.Mutex
	w  io.Writer

	added   *color.Color
	updated *color.Color
	removed *color.Color
	bill    *color.Color
	failed  *color.Color
}

// NewConsole renders to w. Colors follow fatih/color's NoColor detection
// unless noColor forces them off.
func NewConsole(w io.Writer, noColor bool) IService {
	svc := &consoleService{
		w:       w,
		added:   color.New(color.FgGreen, color.Bold),
		updated: color.New(color.FgCyan),
		removed: color.New(color.FgYellow),
		bill:    color.New(color.FgMagenta, color.Bold),
		failed:  color.New(color.FgRed, color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{svc.added, svc.updated, svc.removed, svc.bill, svc.failed} {
			c.DisableColor()
		}
	}
	return svc
}

func (svc *consoleService) Event(event model.Event) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	ts := event.Timestamp.Format("15:04:05")
	switch event.Type {
	case model.LineAdded:
		svc.added.Fprintf(svc.w, "%s + %s %s (line %s)\n", ts, event.Line.Name, billing.FormatCurrency(event.Line.UnitPrice), event.Line.ID)
	case model.LineUpdated:
		svc.updated.Fprintf(svc.w, "%s ~ %s x%d = %s\n", ts, event.Line.Name, event.Line.Quantity, billing.FormatCurrency(event.Line.Total()))
	case model.LineRemoved:
		svc.removed.Fprintf(svc.w, "%s - %s removed\n", ts, event.Line.Name)
	case model.BillCreated:
		svc.bill.Fprintf(svc.w, "%s bill %s created\n", ts, event.Bill.ID)
		fmt.Fprintln(svc.w, billing.RenderText(event.Bill))
	case model.BillSent:
		svc.bill.Fprintf(svc.w, "%s bill %s sent to %s\n", ts, event.Bill.ID, event.Bill.CustomerEmail)
	case model.BillFailed:
		svc.failed.Fprintf(svc.w, "%s bill not sent: %s\n", ts, event.Reason)
	case model.CartCleared:
		svc.bill.Fprintf(svc.w, "%s cart cleared, ready for the next customer\n", ts)
	default:
		fmt.Fprintf(svc.w, "%s %s\n", ts, event.Type)
	}
}

func (svc *consoleService) Cart(lines []model.CartLine) {
	t := table.NewWriter()
	t.SetTitle("Cart")
	t.AppendHeader(table.Row{"#", "Line", "Item", "Qty", "Total"})
	for i, l := range lines {
		t.AppendRow(table.Row{i + 1, l.ID, l.Name, l.Quantity, billing.FormatCurrency(l.Total())})
	}
	t.AppendFooter(table.Row{"", "", "", "Subtotal", billing.FormatCurrency(billing.Subtotal(lines))})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 5, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	t.SetStyle(table.StyleLight)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	fmt.Fprintln(svc.w, t.Render())
}

func (svc *consoleService) Bills(bills []model.Bill) {
	t := table.NewWriter()
	t.SetTitle("Bills")
	t.AppendHeader(table.Row{"Order", "Created", "Items", "Total", "Sent To"})
	for _, b := range bills {
		sentTo := "-"
		if b.DeliveredAt != nil {
			sentTo = b.CustomerEmail
		}
		t.AppendRow(table.Row{b.ID, b.CreatedAt.Format("2006-01-02 15:04"), b.Items(), billing.FormatCurrency(b.GrandTotal), sentTo})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	t.SetStyle(table.StyleLight)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	fmt.Fprintln(svc.w, t.Render())
}

func (svc *consoleService) Catalog(products map[string]model.Product) {
	labels := make([]string, 0, len(products))
	for label := range products {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	t := table.NewWriter()
	t.SetTitle("Catalog")
	t.AppendHeader(table.Row{"Label", "Product", "Price"})
	for _, label := range labels {
		p := products[label]
		t.AppendRow(table.Row{label, p.Name, billing.FormatCurrency(p.UnitPrice)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
	})
	t.SetStyle(table.StyleLight)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	fmt.Fprintln(svc.w, t.Render())
}
