// Package notify renders simulation state to the terminal.
package notify

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polysim/internal/domain"
	"github.com/alejandrodnm/polysim/internal/evaluation"
	"github.com/alejandrodnm/polysim/internal/simulator"
)

// Console writes cycle summaries and the full report to a writer.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole writes to stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter is for tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Cycle prints a one-line summary of a simulation pass.
func (c *Console) Cycle(result simulator.CycleResult, account *domain.Account) {
	now := time.Now().Format("15:04:05")
	fmt.Fprintf(c.out, "[%s] %d mkts → %d tradeable, %d orders, %d holds | bal $%.2f pnl $%.2f (%.1fms)\n",
		now, result.MarketsScanned, result.Tradeable, result.OrdersPlaced, result.Holds,
		account.Balance, account.TotalPnL(),
		float64(result.Duration.Microseconds())/1000)
}

// Report prints the account summary, open positions, evaluation metrics, and
// cohort table.
func (c *Console) Report(account *domain.Account, eval *evaluation.Service) {
	c.printAccount(account)

	if open := account.OpenPositions(); len(open) > 0 {
		c.printPositions(open)
	}

	metrics := eval.Metrics(nil)
	c.printMetrics(metrics)

	if cohorts := eval.Cohorts(); len(cohorts) > 0 && c.table {
		c.printCohorts(cohorts)
	}

	if pending := eval.PendingResolutions(); len(pending) > 0 {
		fmt.Fprintf(c.out, "\n%d decisions awaiting resolution\n", len(pending))
	}
}

func (c *Console) printAccount(account *domain.Account) {
	fmt.Fprintf(c.out, "\n=== ACCOUNT ===\n")
	fmt.Fprintf(c.out, "Balance:   $%.2f (initial $%.2f)\n", account.Balance, account.InitialBalance)
	fmt.Fprintf(c.out, "Realized:  $%.2f\n", account.TotalPnL())
	fmt.Fprintf(c.out, "Fees:      $%.2f\n", account.TotalFeesPaid)
	fmt.Fprintf(c.out, "Trades:    %d (win rate %.1f%%)\n", account.TotalTrades, account.WinRate())
}

func (c *Console) printPositions(positions []*domain.Position) {
	if !c.table {
		fmt.Fprintf(c.out, "Open positions: %d\n", len(positions))
		return
	}

	fmt.Fprintf(c.out, "\n=== OPEN POSITIONS ===\n")
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Token", "Side", "Qty", "AvgPx", "Cost", "RealPnL")
	for _, position := range positions {
		tbl.Append(
			shorten(position.TokenID, 16),
			string(position.Side),
			fmt.Sprintf("%.1f", position.Quantity),
			fmt.Sprintf("$%.4f", position.AvgPrice),
			fmt.Sprintf("$%.2f", position.CostBasis()),
			fmt.Sprintf("$%.2f", position.RealizedPnL),
		)
	}
	tbl.Render()
}

func (c *Console) printMetrics(metrics evaluation.Metrics) {
	fmt.Fprintf(c.out, "\n=== EVALUATION ===\n")
	fmt.Fprintf(c.out, "Decisions: %d logged, %d resolved\n",
		metrics.TotalDecisions, metrics.ResolvedDecisions)
	if metrics.ResolvedDecisions == 0 {
		return
	}
	fmt.Fprintf(c.out, "Accuracy:  %.1f%% (%d correct)\n", metrics.Accuracy, metrics.CorrectPredictions)
	fmt.Fprintf(c.out, "Win rate:  %.1f%% (%d profitable)\n", metrics.WinRate, metrics.ProfitableDecisions)
	fmt.Fprintf(c.out, "Brier:     %.4f\n", metrics.BrierScore)
	fmt.Fprintf(c.out, "Edge:      est %.4f → realized %.4f (preservation %.2f)\n",
		metrics.MeanEdge, metrics.MeanEdgeRealized, metrics.EdgePreservationRatio)
	fmt.Fprintf(c.out, "Drag:      %.1f bps\n", metrics.MeanExecutionDragBps)
	fmt.Fprintf(c.out, "PnL:       $%.2f\n", metrics.TotalPnL)
}

func (c *Console) printCohorts(cohorts []*domain.CohortStats) {
	fmt.Fprintf(c.out, "\n=== COHORTS ===\n")
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Start", "N", "Profit", "Brier", "EdgePres", "Drag", "PnL", "Cap$")
	for _, cohort := range cohorts {
		tbl.Append(
			cohort.StartTime.Format("01-02 15:04"),
			fmt.Sprintf("%d", cohort.TotalDecisions),
			fmt.Sprintf("%d", cohort.ProfitableDecisions),
			fmt.Sprintf("%.4f", cohort.BrierScore),
			fmt.Sprintf("%.2f", cohort.EdgePreservationRatio),
			fmt.Sprintf("%.1f", cohort.MeanExecutionDragBps),
			fmt.Sprintf("$%.2f", cohort.TotalPnL),
			fmt.Sprintf("$%.0f", cohort.CapitalDeployed),
		)
	}
	tbl.Render()
}

func shorten(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
