// Command portfolio prints a realized-performance report over the position
// table and the fill journal, for inspecting the tracker's state between runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"tradealerter/internal/adapters/csvstore"
	"tradealerter/internal/adapters/logger"
	"tradealerter/internal/adapters/sqlite"
	"tradealerter/internal/domain"
	"tradealerter/internal/stats"
)

func main() {
	tablePath := flag.String("table", "./data/portfolio.csv", "path to the position table")
	journalPath := flag.String("journal", "./data/fill_journal.db", "path to the fill journal database")
	flag.Parse()

	appLogger := logger.NewStdLogger(logger.LevelWarn)

	store, err := csvstore.New(csvstore.Config{Path: *tablePath, Logger: appLogger})
	if err != nil {
		log.Fatalf("Error opening position table: %v", err)
	}
	rows, err := store.Load()
	if err != nil {
		log.Fatalf("Error loading position table: %v", err)
	}

	positions := make([]domain.Position, len(rows))
	for i, p := range rows {
		positions[i] = *p
	}

	printOpenPositions(positions)
	printPerformance(stats.Analyze(positions))
	printJournalSummary(*journalPath, appLogger)
}

func printOpenPositions(positions []domain.Position) {
	fmt.Println("## Open Positions")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Symbol\tBroker\tQty\tFills\tPrice\tAvged\tOpened\t")
	open := 0
	for _, p := range positions {
		if !p.IsOpen() {
			continue
		}
		open++
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%.2f\t%d\t%s\t\n",
			p.Symbol, p.Broker, p.Qty, p.Fills, p.Price, p.Avged, p.Date)
	}
	w.Flush()
	if open == 0 {
		fmt.Println("(none)")
	}
	fmt.Println()
}

func printPerformance(m *stats.PerformanceMetrics) {
	fmt.Println("## Realized Performance")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintf(w, "Positions\t%d\t\n", m.TotalPositions)
	fmt.Fprintf(w, "Closed\t%d\t\n", m.ClosedPositions)
	fmt.Fprintf(w, "Win Rate\t%.1f%%\t\n", m.WinRate*100)
	fmt.Fprintf(w, "Total PnL $\t%.2f\t\n", m.TotalPnL)
	fmt.Fprintf(w, "Avg PnL %%\t%.2f\t\n", m.AveragePnLPct)
	fmt.Fprintf(w, "Avg Win $\t%.2f\t\n", m.AverageWin)
	fmt.Fprintf(w, "Avg Loss $\t%.2f\t\n", m.AverageLoss)
	fmt.Fprintf(w, "Max Drawdown $\t%.2f\t\n", m.MaxDrawdown)
	w.Flush()
	for broker, pnl := range m.PnLByBroker {
		fmt.Printf("  %s: %.2f\n", broker, pnl)
	}
	fmt.Println()
}

func printJournalSummary(path string, appLogger *logger.StdLogger) {
	if _, err := os.Stat(path); err != nil {
		return // no journal yet, nothing to report
	}
	journal, err := sqlite.NewJournal(sqlite.Config{DBPath: path, Logger: appLogger})
	if err != nil {
		log.Fatalf("Error opening fill journal: %v", err)
	}
	defer journal.Close()

	ctx := context.Background()
	fmt.Println("## Fill Journal")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	for _, outcome := range []domain.JournalOutcome{
		domain.OutcomeOpened, domain.OutcomeAveragedEntry, domain.OutcomeExited,
		domain.OutcomeAveragedExit, domain.OutcomeOrphanExit, domain.OutcomeRejectedAveraging,
	} {
		count, err := journal.CountByOutcome(ctx, outcome)
		if err != nil {
			log.Fatalf("Error counting journal entries: %v", err)
		}
		fmt.Fprintf(w, "%s\t%d\t\n", outcome, count)
	}
	w.Flush()
}
