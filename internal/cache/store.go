// Package cache persists one day's fetched panel as a CSV snapshot so
// repeated runs on the same date skip the providers entirely.
package cache

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/pkg/logger"
)

const (
	fileDateLayout = "20060102"
	cellDateLayout = "2006-01-02"
)

var header = []string{
	"code", "name", "trade_date",
	"open", "high", "low", "close",
	"volume", "amount", "turnover_rate", "pct_change",
	"industry",
}

// Store reads and writes per-day panel snapshots under a directory.
type Store struct {
	dir    string
	logger *logger.Logger
}

// NewStore creates a store rooted at dir. The directory is created on
// the first write.
func NewStore(dir string, log *logger.Logger) *Store {
	return &Store{dir: dir, logger: log}
}

// Path returns the snapshot file path for a date.
func (s *Store) Path(date time.Time) string {
	return filepath.Join(s.dir, fmt.Sprintf("stock_data_%s.csv", date.Format(fileDateLayout)))
}

// Has reports whether a snapshot exists for the date.
func (s *Store) Has(date time.Time) bool {
	_, err := os.Stat(s.Path(date))
	return err == nil
}

// Save writes the panel to the date's snapshot file in a single pass,
// replacing any previous snapshot.
func (s *Store) Save(date time.Time, panel contracts.Panel) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	path := s.Path(date)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, bar := range panel {
		turnover := ""
		if bar.TurnoverRate.Valid {
			turnover = formatFloat(bar.TurnoverRate.Float64)
		}
		record := []string{
			bar.Code,
			bar.Name,
			bar.TradeDate.Format(cellDateLayout),
			formatFloat(bar.Open),
			formatFloat(bar.High),
			formatFloat(bar.Low),
			formatFloat(bar.Close),
			formatFloat(bar.Volume),
			formatFloat(bar.Amount),
			turnover,
			formatFloat(bar.PctChange),
			bar.Industry,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row for %s: %w", bar.Code, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush snapshot %s: %w", path, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"path": path,
		"rows": len(panel),
	}).Info("Panel snapshot saved")

	return nil
}

// Load reads the date's snapshot and re-coerces every column. Codes are
// zero-padded back to six digits (spreadsheet round-trips strip leading
// zeros), unparseable numerics become zero or missing, and columns beyond
// the known header are ignored.
func (s *Store) Load(date time.Time) (contracts.Panel, error) {
	path := s.Path(date)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if len(records) == 0 {
		return contracts.Panel{}, nil
	}

	col := columnIndex(records[0])
	panel := make(contracts.Panel, 0, len(records)-1)
	skipped := 0

	for _, record := range records[1:] {
		bar, ok := parseRow(record, col)
		if !ok {
			skipped++
			continue
		}
		panel = append(panel, bar)
	}

	if skipped > 0 {
		s.logger.WithFields(map[string]interface{}{
			"path":    path,
			"skipped": skipped,
		}).Warn("Snapshot rows without code or date were dropped")
	}

	s.logger.WithFields(map[string]interface{}{
		"path": path,
		"rows": len(panel),
	}).Info("Panel snapshot loaded")

	return panel, nil
}

// columnIndex maps header names to positions so extra or reordered
// columns in a hand-edited snapshot still load.
func columnIndex(headerRow []string) map[string]int {
	idx := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		idx[name] = i
	}
	return idx
}

func parseRow(record []string, col map[string]int) (contracts.PriceBar, bool) {
	cell := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	code := PadCode(cell("code"))
	if code == "" {
		return contracts.PriceBar{}, false
	}

	tradeDate, err := time.Parse(cellDateLayout, cell("trade_date"))
	if err != nil {
		return contracts.PriceBar{}, false
	}

	bar := contracts.PriceBar{
		Code:         code,
		Name:         cell("name"),
		TradeDate:    tradeDate,
		Open:         coerceFloat(cell("open")),
		High:         coerceFloat(cell("high")),
		Low:          coerceFloat(cell("low")),
		Close:        coerceFloat(cell("close")),
		Volume:       coerceFloat(cell("volume")),
		Amount:       coerceFloat(cell("amount")),
		TurnoverRate: coerceNullFloat(cell("turnover_rate")),
		PctChange:    coerceFloat(cell("pct_change")),
		Industry:     cell("industry"),
	}
	if bar.Industry == "" {
		bar.Industry = contracts.DefaultIndustry
	}
	return bar, true
}

// PadCode left-pads a numeric instrument code to six digits.
func PadCode(code string) string {
	if code == "" {
		return ""
	}
	for len(code) < 6 {
		code = "0" + code
	}
	return code
}

// coerceFloat parses a numeric cell, mapping garbage to zero.
func coerceFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// coerceNullFloat parses an optional numeric cell, mapping empty or
// garbage cells to missing.
func coerceNullFloat(s string) contracts.NullFloat {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return contracts.Null()
	}
	return contracts.Float(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
