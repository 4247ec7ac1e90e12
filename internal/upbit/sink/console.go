package sink

import (
	"fmt"
	"io"
	"strings"

	"upbitwatch/internal/upbit/model"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Console renders each cycle as a holdings table followed by a market table.
type Console struct {
	out     io.Writer
	limit   int
	quote   string
	printer *message.Printer
}

// NewConsole writes to out. limit caps the market rows per cycle; 0 prints every market.
func NewConsole(out io.Writer, quote string, limit int) *Console {
	return &Console{
		out:     out,
		limit:   limit,
		quote:   quote,
		printer: message.NewPrinter(language.English),
	}
}

// OnUpdate is an eventbus handler.
func (c *Console) OnUpdate(ev model.UpdateEvent) error {
	display := &strings.Builder{}
	fmt.Fprintf(display, "\n[cycle %d] %s\n", ev.Cycle, ev.At.Format("2006-01-02 15:04:05"))

	if len(ev.Holdings) > 0 {
		display.WriteString("Holdings:\n")
		c.RenderHoldings(display, ev.Holdings)
	}

	display.WriteString("Markets:\n")
	c.RenderMarkets(display, ev.Deltas)

	_, err := io.WriteString(c.out, display.String())
	return err
}

func (c *Console) RenderHoldings(w io.Writer, holdings []model.Holding) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Currency", "Amount", "Price (" + c.quote + ")", "Change", "Value (" + c.quote + ")"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)

	for _, h := range holdings {
		if !h.Priced {
			table.Append([]string{h.Currency, c.number(h.Amount), "n/a", "", ""})
			continue
		}
		table.Append([]string{
			h.Currency,
			c.number(h.Amount),
			c.number(h.Price),
			c.change(h.Delta, h.Direction),
			c.number(h.Value.Round(0)),
		})
	}
	table.Render()
}

func (c *Console) RenderMarkets(w io.Writer, deltas []model.DeltaRecord) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Market", "Price", "Change"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)

	for i, d := range deltas {
		if c.limit > 0 && i >= c.limit {
			table.SetFooter([]string{"", "", fmt.Sprintf("+%d more", len(deltas)-c.limit)})
			break
		}
		table.Append([]string{string(d.Symbol), c.number(d.Current), c.change(d.Delta, d.Direction)})
	}
	table.Render()
}

// change formats a signed delta with its direction mark, e.g. "▲ +1,000".
func (c *Console) change(delta decimal.Decimal, dir model.Direction) string {
	switch dir {
	case model.Up:
		return "▲ +" + c.number(delta)
	case model.Down:
		return "▼ -" + c.number(delta.Abs())
	default:
		return "- 0"
	}
}

// number groups the integer part and keeps the exact fractional digits.
func (c *Console) number(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	_, frac, hasFrac := strings.Cut(d.String(), ".")
	grouped := c.printer.Sprintf("%d", d.IntPart())
	if hasFrac {
		return sign + grouped + "." + frac
	}
	return sign + grouped
}
