package contracts

import "time"

// Action is the advice label on a basic-path signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Tier identifies which eligibility tier produced a selection.
type Tier int

const (
	// TierStrict is the first-pass filter set.
	TierStrict Tier = 1
	// TierRelaxed is the fallback filter set used when too few rows pass
	// the strict tier. There is no third tier.
	TierRelaxed Tier = 2
)

func (t Tier) String() string {
	switch t {
	case TierStrict:
		return "strict"
	case TierRelaxed:
		return "relaxed"
	default:
		return "unknown"
	}
}

// Signal is one actionable row at the target date. Enhanced-path signals
// carry Rank and Composite; basic-path signals carry Buy/Sell flags, an
// action label and a target price. Reporting must not assume the
// enhanced fields are present.
type Signal struct {
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	TradeDate    time.Time `json:"trade_date"`
	Close        float64   `json:"close"`
	PctChange    float64   `json:"pct_change"`
	TurnoverRate NullFloat `json:"turnover_rate"`
	Industry     string    `json:"industry"`

	// Enhanced path
	Rank      int       `json:"rank,omitempty"`
	Composite NullFloat `json:"composite_score,omitempty"`

	// Basic path. Buy and Sell may both be set; the rules define no
	// precedence, so both flags are surfaced as-is.
	Buy         bool      `json:"buy,omitempty"`
	Sell        bool      `json:"sell,omitempty"`
	Action      Action    `json:"action,omitempty"`
	TargetPrice NullFloat `json:"target_price,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// SelectionResult is the ranked output of the enhanced path for one
// target date. An empty Rows slice is a valid, reportable outcome.
type SelectionResult struct {
	Date time.Time   `json:"date"`
	Tier Tier        `json:"tier"`
	Rows []ScoredRow `json:"rows"`
}

// Count returns the number of selected rows.
func (r *SelectionResult) Count() int {
	return len(r.Rows)
}
