// Package scoring turns one date's factor slice into composite scores:
// median-fill missing cells, clip outliers to the IQR fence, z-score
// each factor column and accumulate the weighted sum.
package scoring

import (
	"math"
	"sort"

	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/internal/strategyconfig"
	"github.com/zlin/ashare-quant/pkg/logger"
)

// Scorer standardizes factor columns and computes composite scores over
// a single-date slice. It is a pure function of its input: scoring the
// same slice twice yields bit-for-bit identical results.
type Scorer struct {
	weights strategyconfig.Weights
	logger  *logger.Logger
}

// NewScorer creates a scorer with the given factor weights.
func NewScorer(weights strategyconfig.Weights, log *logger.Logger) *Scorer {
	return &Scorer{weights: weights, logger: log}
}

// factorColumn wires one factor column to its accessors and weight sign.
type factorColumn struct {
	name   string
	get    func(*contracts.ScoredRow) contracts.NullFloat
	set    func(*contracts.ScoredRow, float64)
	setZ   func(*contracts.ScoredRow, float64)
	weight func(*Scorer) float64
}

func columns() []factorColumn {
	return []factorColumn{
		{
			name: "return_20d",
			get:  func(r *contracts.ScoredRow) contracts.NullFloat { return r.Return20D },
			set:  func(r *contracts.ScoredRow, v float64) { r.Return20D = contracts.Float(v) },
			setZ: func(r *contracts.ScoredRow, z float64) { r.ZReturn20D = z },
			weight: func(s *Scorer) float64 { return s.weights.Momentum },
		},
		{
			name: "turnover_5d",
			get:  func(r *contracts.ScoredRow) contracts.NullFloat { return r.Turnover5D },
			set:  func(r *contracts.ScoredRow, v float64) { r.Turnover5D = contracts.Float(v) },
			setZ: func(r *contracts.ScoredRow, z float64) { r.ZTurnover5D = z },
			weight: func(s *Scorer) float64 { return s.weights.Value },
		},
		{
			name: "volatility_20d",
			get:  func(r *contracts.ScoredRow) contracts.NullFloat { return r.Volatility20D },
			set:  func(r *contracts.ScoredRow, v float64) { r.Volatility20D = contracts.Float(v) },
			setZ: func(r *contracts.ScoredRow, z float64) { r.ZVolatility20D = z },
			// Less volatile is better.
			weight: func(s *Scorer) float64 { return -s.weights.Quality },
		},
		{
			name: "trend",
			get:  func(r *contracts.ScoredRow) contracts.NullFloat { return r.Trend },
			set:  func(r *contracts.ScoredRow, v float64) { r.Trend = contracts.Float(v) },
			setZ: func(r *contracts.ScoredRow, z float64) { r.ZTrend = z },
			weight: func(s *Scorer) float64 { return s.weights.Sentiment },
		},
	}
}

// Score processes the slice column by column. After it returns, every
// row carries a real composite score and the four factor cells are
// filled and clipped; a degenerate (zero-variance) column contributes a
// zero z-score for every row.
func (s *Scorer) Score(slice []contracts.FactorRow) []contracts.ScoredRow {
	rows := make([]contracts.ScoredRow, len(slice))
	for i, fr := range slice {
		rows[i] = contracts.ScoredRow{FactorRow: fr}
	}
	if len(rows) == 0 {
		return rows
	}

	for _, col := range columns() {
		s.scoreColumn(rows, col)
	}

	s.logger.WithFields(map[string]interface{}{
		"rows": len(rows),
	}).Debug("Composite scoring completed")

	return rows
}

func (s *Scorer) scoreColumn(rows []contracts.ScoredRow, col factorColumn) {
	// 1. Median-fill missing cells over the slice. A column with no
	// valid cell at all fills with zero.
	values := make([]float64, 0, len(rows))
	for i := range rows {
		if v := col.get(&rows[i]); v.Valid {
			values = append(values, v.Float64)
		}
	}
	med := 0.0
	if len(values) > 0 {
		med = quantile(values, 0.5)
	}
	for i := range rows {
		if !col.get(&rows[i]).Valid {
			col.set(&rows[i], med)
		}
	}

	// 2. Clip to [Q1 - 1.5*IQR, Q3 + 1.5*IQR] over the filled column.
	filled := make([]float64, len(rows))
	for i := range rows {
		filled[i] = col.get(&rows[i]).Float64
	}
	q1 := quantile(filled, 0.25)
	q3 := quantile(filled, 0.75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr
	for i := range rows {
		v := col.get(&rows[i]).Float64
		if v < lower {
			v = lower
		} else if v > upper {
			v = upper
		}
		col.set(&rows[i], v)
		filled[i] = v
	}

	// 3. Standardize; a zero stddev column contributes nothing rather
	// than a divide-by-zero fault.
	mean, std := meanStd(filled)
	weight := col.weight(s)
	for i := range rows {
		z := 0.0
		if std != 0 {
			z = (filled[i] - mean) / std
		}
		col.setZ(&rows[i], z)
		rows[i].Composite += z * weight
	}
}

// quantile computes the q-quantile with linear interpolation between
// order statistics, matching the conventional spreadsheet definition.
func quantile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}

	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// meanStd returns the mean and sample standard deviation.
func meanStd(values []float64) (float64, float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	if n < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(n-1))
}
