package commands

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/zlin/ashare-quant/internal/analyzer"
	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/internal/market"
)

var analyzeDate string

var codePattern = regexp.MustCompile(`^\d{6}$`)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <code>",
	Short: "Deep dive into one stock",
	Long: `Analyze a single stock in depth: trend, momentum, volatility and
volume sections over a long daily window, the valuation snapshot, a
0-100 score and a recommendation with risk warnings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code := args[0]
		if !codePattern.MatchString(code) {
			return fmt.Errorf("invalid code %q, want six digits", code)
		}

		a, err := bootstrap()
		if err != nil {
			return err
		}

		date := time.Now().Truncate(24 * time.Hour)
		if analyzeDate != "" {
			date, err = time.Parse("2006-01-02", analyzeDate)
			if err != nil {
				return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", analyzeDate)
			}
		}

		ctx := context.Background()

		bars, err := a.provider.FetchAnalysisHistory(ctx, code, date)
		if err != nil {
			return fmt.Errorf("fetch history for %s: %w", code, err)
		}
		if len(bars) == 0 {
			return fmt.Errorf("no daily history for %s", code)
		}

		// Valuation and index context are best effort.
		fund := contracts.Fundamental{Code: code}
		if funds, err := a.provider.FetchFundamentals(ctx); err != nil {
			a.logger.WithError(err).Warn("Fundamentals unavailable, valuation section degraded")
		} else {
			for _, f := range funds {
				if f.Code == code {
					fund = f
					break
				}
			}
		}
		indexes := market.NewAnalyzer(a.provider, a.logger).IndexTrends(ctx, date)

		deep := analyzer.New(a.params.Strategy, a.logger)
		rep, err := deep.Analyze(bars, fund, indexes)
		if err != nil {
			return fmt.Errorf("analyze %s: %w", code, err)
		}

		fmt.Fprint(cmd.OutOrStdout(), rep.Render())
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDate, "date", "", "trading date (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(analyzeCmd)
}
