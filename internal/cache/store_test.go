package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/pkg/logger"
)

var snapDate = time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), logger.NewNop())
}

func samplePanel() contracts.Panel {
	return contracts.Panel{
		{
			Code: "000001", Name: "PAB", TradeDate: snapDate,
			Open: 10.1, High: 10.5, Low: 9.9, Close: 10.3,
			Volume: 1_200_000, Amount: 12_360_000,
			TurnoverRate: contracts.Float(1.8), PctChange: 2.1,
			Industry: "Banking",
		},
		{
			Code: "600519", Name: "Moutai", TradeDate: snapDate,
			Open: 1500, High: 1520, Low: 1490, Close: 1510,
			Volume: 30_000, Amount: 45_300_000,
			TurnoverRate: contracts.Null(), PctChange: -0.4,
			Industry: "Beverage",
		},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s := newStore(t)

	require.False(t, s.Has(snapDate))
	require.NoError(t, s.Save(snapDate, samplePanel()))
	require.True(t, s.Has(snapDate))

	panel, err := s.Load(snapDate)
	require.NoError(t, err)
	require.Len(t, panel, 2)

	assert.Equal(t, "000001", panel[0].Code)
	assert.Equal(t, 10.3, panel[0].Close)
	assert.True(t, panel[0].TurnoverRate.Valid)
	assert.Equal(t, 1.8, panel[0].TurnoverRate.Float64)
	assert.Equal(t, snapDate, panel[0].TradeDate)

	assert.False(t, panel[1].TurnoverRate.Valid, "empty cell stays missing")
}

func TestStore_LoadPadsCodes(t *testing.T) {
	s := newStore(t)

	// A snapshot that lost its leading zeros, as a spreadsheet round-trip
	// would produce.
	raw := "code,name,trade_date,open,high,low,close,volume,amount,turnover_rate,pct_change,industry\n" +
		"1,PAB,2026-08-28,10,10,10,10,100,1000,1.5,0.5,Banking\n"
	require.NoError(t, os.WriteFile(s.Path(snapDate), []byte(raw), 0o644))

	panel, err := s.Load(snapDate)
	require.NoError(t, err)
	require.Len(t, panel, 1)
	assert.Equal(t, "000001", panel[0].Code)
}

func TestStore_LoadCoercesGarbage(t *testing.T) {
	s := newStore(t)

	raw := "code,name,trade_date,open,high,low,close,volume,amount,turnover_rate,pct_change,industry,extra\n" +
		"600519,Moutai,2026-08-28,abc,1520,1490,1510,n/a,45300000,--,-0.4,,surplus\n" +
		",orphan,2026-08-28,1,1,1,1,1,1,1,1,x\n" +
		"000002,BadDate,28/08/2026,1,1,1,1,1,1,1,1,x\n"
	require.NoError(t, os.WriteFile(s.Path(snapDate), []byte(raw), 0o644))

	panel, err := s.Load(snapDate)
	require.NoError(t, err)
	require.Len(t, panel, 1, "rows without a code or parseable date are dropped")

	bar := panel[0]
	assert.Zero(t, bar.Open, "garbage numeric coerces to zero")
	assert.Zero(t, bar.Volume)
	assert.False(t, bar.TurnoverRate.Valid, "garbage optional coerces to missing")
	assert.Equal(t, 1510.0, bar.Close)
	assert.Equal(t, contracts.DefaultIndustry, bar.Industry, "blank industry gets the sentinel")
}

func TestStore_SaveReplacesPrevious(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Save(snapDate, samplePanel()))
	require.NoError(t, s.Save(snapDate, samplePanel()[:1]))

	panel, err := s.Load(snapDate)
	require.NoError(t, err)
	assert.Len(t, panel, 1)
}

func TestStore_PathLayout(t *testing.T) {
	s := NewStore("cachedir", logger.NewNop())
	assert.Equal(t, filepath.Join("cachedir", "stock_data_20260828.csv"), s.Path(snapDate))
}

func TestPadCode(t *testing.T) {
	assert.Equal(t, "000001", PadCode("1"))
	assert.Equal(t, "600519", PadCode("600519"))
	assert.Equal(t, "", PadCode(""))
}
