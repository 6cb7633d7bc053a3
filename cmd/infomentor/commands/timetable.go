package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var timetableOffset int

func init() {
	timetableCmd.Flags().IntVar(&timetableOffset, "weeks-back", 0, "How many weeks back to fetch.")
	rootCmd.AddCommand(timetableCmd)
}

var timetableCmd = &cobra.Command{
	Use:   "timetable <user> [--weeks-back <n>]",
	Short: "Fetches a user's timetable, useful to check that a login works.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, done := openApp(cmd.Context())
		defer done()

		entries, err := a.Timetable(cmd.Context(), args[0], timetableOffset)
		if err != nil {
			fatalerr("failed to fetch timetable", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Date", "Start", "End", "Subject", "Room", "Teacher"})
		for _, e := range entries {
			t.AppendRow(table.Row{e.StartDate, e.StartTime, e.EndTime, e.Subject, e.Room, e.Teacher})
		}
		t.Render()
		a.Tel.ReportCount("timetable.entries", int64(len(entries)))
	},
}

