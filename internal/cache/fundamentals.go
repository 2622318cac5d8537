package cache

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zlin/ashare-quant/internal/contracts"
)

var fundamentalHeader = []string{"code", "pe", "market_cap", "profit_growth"}

// FundamentalsPath returns the valuation snapshot file path for a date.
func (s *Store) FundamentalsPath(date time.Time) string {
	return filepath.Join(s.dir, fmt.Sprintf("fundamental_data_%s.csv", date.Format(fileDateLayout)))
}

// HasFundamentals reports whether a valuation snapshot exists for the date.
func (s *Store) HasFundamentals(date time.Time) bool {
	_, err := os.Stat(s.FundamentalsPath(date))
	return err == nil
}

// SaveFundamentals writes the valuation snapshot, replacing any previous
// one. Missing cells are written as empty strings and load back missing.
func (s *Store) SaveFundamentals(date time.Time, funds []contracts.Fundamental) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	path := s.FundamentalsPath(date)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(fundamentalHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, fund := range funds {
		record := []string{
			fund.Code,
			formatNullFloat(fund.PE),
			formatNullFloat(fund.MarketCap),
			formatNullFloat(fund.ProfitGrowth),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row for %s: %w", fund.Code, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush snapshot %s: %w", path, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"path": path,
		"rows": len(funds),
	}).Info("Fundamentals snapshot saved")

	return nil
}

// LoadFundamentals reads the date's valuation snapshot with the same
// coercion rules as the panel: codes re-padded, garbage numerics become
// missing, rows without a code are dropped.
func (s *Store) LoadFundamentals(date time.Time) ([]contracts.Fundamental, error) {
	path := s.FundamentalsPath(date)
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
		return []contracts.Fundamental{}, nil
	}

	col := columnIndex(records[0])
	funds := make([]contracts.Fundamental, 0, len(records)-1)

	for _, record := range records[1:] {
		cell := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(record) {
				return ""
			}
			return record[i]
		}

		code := PadCode(cell("code"))
		if code == "" {
			continue
		}
		funds = append(funds, contracts.Fundamental{
			Code:         code,
			PE:           coerceNullFloat(cell("pe")),
			MarketCap:    coerceNullFloat(cell("market_cap")),
			ProfitGrowth: coerceNullFloat(cell("profit_growth")),
		})
	}

	s.logger.WithFields(map[string]interface{}{
		"path": path,
		"rows": len(funds),
	}).Info("Fundamentals snapshot loaded")

	return funds, nil
}

func formatNullFloat(v contracts.NullFloat) string {
	if !v.Valid {
		return ""
	}
	return formatFloat(v.Float64)
}
