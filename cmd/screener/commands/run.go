package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zlin/ashare-quant/internal/pipeline"
)

var (
	runDate string
	noCache bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one screening pass",
	Long: `Run one screening pass for a trading date (default today).

The run fetches the panel (or serves it from the snapshot cache),
builds factors, scores and selects candidates, evaluates the buy/sell
rules and writes the signal export and market report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}

		date := time.Now().Truncate(24 * time.Hour)
		if runDate != "" {
			date, err = time.Parse("2006-01-02", runDate)
			if err != nil {
				return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", runDate)
			}
		}

		result, err := a.pipeline.Run(context.Background(), pipeline.RunConfig{
			Date:     date,
			UseCache: a.config.UseCache && !noCache,
		})
		if err != nil {
			return fmt.Errorf("screening run failed: %w", err)
		}

		a.logger.WithFields(map[string]interface{}{
			"selected": len(result.RankedSignals),
			"actions":  len(result.ActionSignals),
			"signals":  result.SignalsPath,
			"report":   result.ReportPath,
		}).Info("Screening run finished")

		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "trading date (YYYY-MM-DD, default today)")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore the panel snapshot cache")
	rootCmd.AddCommand(runCmd)
}
