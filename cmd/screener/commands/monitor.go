package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zlin/ashare-quant/internal/monitor"
	"github.com/zlin/ashare-quant/internal/scheduler"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the screen on the trading-day schedule",
	Long: `Start the monitoring daemon.

One pass runs immediately, then the screen runs at 09:30, 11:30 and
14:30 on weekdays. A trigger that fires while the previous run is still
in flight is skipped. SIGINT or SIGTERM stops the scheduler, waits for
a running pass to finish and logs the run history summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		log := a.logger

		sched := scheduler.New(log)
		job := monitor.NewStrategyJob(a.pipeline, a.config.UseCache, log)
		if err := sched.AddJob(job); err != nil {
			return err
		}

		sched.Start()
		log.WithField("schedule", job.Schedule()).Info("Monitoring started, waiting for triggers")

		// First pass right away, like a manual run.
		if err := sched.RunJob(job.Name()); err != nil {
			return err
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit

		log.WithField("signal", sig.String()).Info("Shutdown requested")
		sched.Stop()

		if stats, ok := sched.Stats(job.Name()); ok && stats.Runs > 0 {
			log.WithFields(map[string]interface{}{
				"runs":         stats.Runs,
				"success_rate": stats.SuccessRate,
			}).Info("Run history at shutdown")
			if !stats.Last.Success {
				log.WithField("error", stats.Last.Error).Warn("Last scheduled run had failed")
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
