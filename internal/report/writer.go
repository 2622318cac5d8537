// Package report renders the run's output: a CSV signal export and a
// plain-text market report.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/internal/market"
	"github.com/zlin/ashare-quant/pkg/logger"
)

var signalHeader = []string{
	"rank", "code", "name", "close", "pct_change", "turnover_rate",
	"industry", "composite_score", "action", "target_price", "reason",
}

// Report is everything one run produces for the reader.
type Report struct {
	Date      time.Time
	Tier      contracts.Tier
	Snapshot  market.Snapshot
	Signals   []contracts.Signal
	Narrative string
}

// Writer persists reports under an output directory.
type Writer struct {
	dir    string
	logger *logger.Logger
}

// NewWriter creates a report writer rooted at dir.
func NewWriter(dir string, log *logger.Logger) *Writer {
	return &Writer{dir: dir, logger: log}
}

// WriteSignalsCSV exports the signals to signals_<date>.csv and returns
// the file path.
func (w *Writer) WriteSignalsCSV(date time.Time, signals []contracts.Signal) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("signals_%s.csv", date.Format("20060102")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(signalHeader); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	for _, sig := range signals {
		record := []string{
			strconv.Itoa(sig.Rank),
			sig.Code,
			sig.Name,
			formatFloat(sig.Close),
			formatFloat(sig.PctChange),
			optional(sig.TurnoverRate),
			sig.Industry,
			optional(sig.Composite),
			string(sig.Action),
			optional(sig.TargetPrice),
			sig.Reason,
		}
		if err := cw.Write(record); err != nil {
			return "", fmt.Errorf("write row for %s: %w", sig.Code, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flush %s: %w", path, err)
	}

	w.logger.WithFields(map[string]interface{}{
		"path":    path,
		"signals": len(signals),
	}).Info("Signal export written")

	return path, nil
}

// WriteReport renders the text report to report_<date>.txt and returns
// the file path.
func (w *Writer) WriteReport(r Report) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("report_%s.txt", r.Date.Format("20060102")))
	if err := os.WriteFile(path, []byte(Render(r)), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	w.logger.WithField("path", path).Info("Market report written")
	return path, nil
}

// Render produces the plain-text report. Sections with no data render
// a one-line note instead of disappearing, so the reader can tell an
// empty section from a broken one.
func Render(r Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Market Analysis Report - %s\n", r.Date.Format("2006-01-02"))
	b.WriteString(strings.Repeat("=", 50) + "\n\n")

	section(&b, "1. Index Trends")
	if len(r.Snapshot.Indexes) == 0 {
		b.WriteString("index data unavailable\n")
	}
	for _, idx := range r.Snapshot.Indexes {
		fmt.Fprintf(&b, "%s:\n", idx.Name)
		fmt.Fprintf(&b, "  - trend: %s\n", idx.Trend)
		fmt.Fprintf(&b, "  - change: %+.2f%%\n", idx.PctChange)
	}
	b.WriteString("\n")

	section(&b, "2. Market Breadth")
	fmt.Fprintf(&b, "advancers: %d\n", r.Snapshot.Advancers)
	fmt.Fprintf(&b, "decliners: %d\n", r.Snapshot.Decliners)
	fmt.Fprintf(&b, "sentiment: %s\n\n", r.Snapshot.Sentiment)

	section(&b, "3. Sector Performance")
	if len(r.Snapshot.TopSectors) == 0 && len(r.Snapshot.BottomSectors) == 0 {
		b.WriteString("sector data unavailable\n")
	}
	if len(r.Snapshot.TopSectors) > 0 {
		b.WriteString("strongest:\n")
		for _, s := range r.Snapshot.TopSectors {
			fmt.Fprintf(&b, "  - %s: %+.2f%% (%d stocks)\n", s.Name, s.AvgPctChange, s.Count)
		}
	}
	if len(r.Snapshot.BottomSectors) > 0 {
		b.WriteString("weakest:\n")
		for _, s := range r.Snapshot.BottomSectors {
			fmt.Fprintf(&b, "  - %s: %+.2f%% (%d stocks)\n", s.Name, s.AvgPctChange, s.Count)
		}
	}
	b.WriteString("\n")

	section(&b, "4. Selected Stocks")
	if r.Tier == contracts.TierRelaxed {
		b.WriteString("note: thresholds were relaxed to fill the list\n")
	}
	if len(r.Signals) == 0 {
		b.WriteString("no stocks passed today's screen\n")
	}
	for _, sig := range r.Signals {
		if sig.Rank > 0 {
			fmt.Fprintf(&b, "#%d %s %s\n", sig.Rank, sig.Code, sig.Name)
		} else {
			fmt.Fprintf(&b, "%s %s %s\n", sig.Action, sig.Code, sig.Name)
		}
		fmt.Fprintf(&b, "  close: %.2f\n", sig.Close)
		fmt.Fprintf(&b, "  change: %+.2f%%\n", sig.PctChange)
		if sig.TurnoverRate.Valid {
			fmt.Fprintf(&b, "  turnover: %.2f%%\n", sig.TurnoverRate.Float64)
		}
		if sig.Composite.Valid {
			fmt.Fprintf(&b, "  score: %.4f\n", sig.Composite.Float64)
		}
		if sig.TargetPrice.Valid {
			fmt.Fprintf(&b, "  target: %.2f\n", sig.TargetPrice.Float64)
		}
		if sig.Reason != "" {
			fmt.Fprintf(&b, "  reason: %s\n", sig.Reason)
		}
		b.WriteString(strings.Repeat("-", 20) + "\n")
	}

	if r.Narrative != "" {
		b.WriteString("\n")
		section(&b, "5. Commentary")
		b.WriteString(r.Narrative + "\n")
	}

	return b.String()
}

func section(b *strings.Builder, title string) {
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("-", 30) + "\n")
}

func optional(n contracts.NullFloat) string {
	if !n.Valid {
		return ""
	}
	return formatFloat(n.Float64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
