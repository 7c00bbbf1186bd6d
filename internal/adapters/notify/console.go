package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Console implementa ports.Notifier.
type Console struct {
	out    io.Writer
	detail bool
}

// NewConsole crea un notificador que escribe a stdout. Con detail imprime
// además el diario de operaciones de cada bot.
func NewConsole(detail bool) *Console {
	return &Console{out: os.Stdout, detail: detail}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, detail bool) *Console {
	return &Console{out: w, detail: detail}
}

// Notify imprime un ranking por ticker y la lista de simulaciones fallidas.
func (c *Console) Notify(_ context.Context, results []domain.SimulationResult) error {
	if len(results) == 0 {
		fmt.Fprintln(c.out, "no simulation results")
		return nil
	}

	var ok, failed []domain.SimulationResult
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, r)
			continue
		}
		ok = append(ok, r)
	}

	if len(ok) > 0 {
		c.printTable(ok)
	}
	if len(failed) > 0 {
		c.printFailures(failed)
	}
	if c.detail {
		for _, r := range ok {
			c.printOperations(r)
		}
	}
	return nil
}

// printTable ordena por ticker y, dentro del ticker, por beneficio absoluto desc.
func (c *Console) printTable(results []domain.SimulationResult) {
	sorted := append([]domain.SimulationResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Ticker != sorted[j].Ticker {
			return sorted[i].Ticker < sorted[j].Ticker
		}
		return sorted[i].AbsoluteProfit.GreaterThan(sorted[j].AbsoluteProfit)
	})

	iv := sorted[0].Interval
	fmt.Fprintf(c.out, "\n%d simulations  %s\n", len(sorted), iv)

	table := tablewriter.NewWriter(c.out)
	table.Header("Ticker", "Bot", "Invested", "Avg inv", "Final", "Profit", "Rel %", "Year %", "Ops")
	for _, r := range sorted {
		cur := r.InitialBalance.Currency
		table.Append(
			r.Ticker,
			truncate(r.Bot, 32),
			amount(r.TotalInvestment, cur),
			amount(r.WeightedAverageInvestment, cur),
			amount(r.FinalTotalBalance, cur),
			amount(r.AbsoluteProfit, cur),
			r.RelativeProfit.Mul(hundred).StringFixed(2),
			r.RelativeYearProfit.Mul(hundred).StringFixed(2),
			fmt.Sprintf("%d", len(r.Operations)),
		)
	}
	table.Render()
}

func (c *Console) printFailures(failed []domain.SimulationResult) {
	fmt.Fprintf(c.out, "\n%d failed:\n", len(failed))
	for _, r := range failed {
		fmt.Fprintf(c.out, "  %s/%s: %s\n", r.Ticker, r.Bot, r.Error)
	}
}

func (c *Console) printOperations(r domain.SimulationResult) {
	fmt.Fprintf(c.out, "\n--- %s/%s ---\n", r.Ticker, r.Bot)
	if len(r.Operations) == 0 {
		fmt.Fprintln(c.out, "  no operations")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Side", "Lots", "Qty", "Price", "Commission", "State")
	for _, op := range r.Operations {
		table.Append(
			op.Time.UTC().Format("2006-01-02 15:04"),
			string(op.Direction),
			fmt.Sprintf("%d", op.Lots),
			fmt.Sprintf("%d", op.Quantity),
			op.Price.String(),
			op.Commission.StringFixed(4),
			string(op.State),
		)
	}
	table.Render()
}

func amount(d decimal.Decimal, currency string) string {
	return fmt.Sprintf("%s %s", d.StringFixed(2), currency)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
