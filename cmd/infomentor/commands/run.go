package commands

import (
	"log/slog"

	"infomentor-notifier/internal/components/chrono"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(daemonCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Polls every enabled user once.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, done := openApp(cmd.Context())
		defer done()

		err := a.RunCycle(cmd.Context())
		if err != nil {
			fatalerr("poll cycle failed", err)
		}
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Polls every enabled user on the configured schedule until interrupted.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, done := openApp(cmd.Context())
		defer done()

		cron := chrono.NewStandardCron(a.Tel, a.Time)
		err := a.Daemon(cmd.Context(), cron)
		if err != nil {
			fatalerr("invalid schedule", err)
		}
		slog.Info("polling", "schedule", a.Config.Schedule)
		cron.Start()
		<-cmd.Context().Done()
		cron.Stop()
	},
}
