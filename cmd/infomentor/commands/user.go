package commands

import (
	"fmt"
	"time"

	"infomentor-notifier/internal/notify"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manages the users that are polled.",
}

func init() {
	userCmd.AddCommand(
		userAddCmd,
		userPasswordCmd,
		userCalendarCmd,
		userInvitationCmd,
		userStatusAlertsCmd,
		userListCmd,
	)
	for _, kind := range notify.Kinds {
		userCmd.AddCommand(channelCmd(kind))
	}
	rootCmd.AddCommand(userCmd)
}

var userAddCmd = &cobra.Command{
	Use:   "add <user> [password]",
	Short: "Adds a user or changes their password, without a password the user is disabled.",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		a, done := openApp(cmd.Context())
		defer done()

		password := ""
		if len(args) == 2 {
			password = args[1]
		}
		err := a.AddUser(cmd.Context(), args[0], password)
		if err != nil {
			fatalerr("failed to add user", err)
		}
	},
}

var userPasswordCmd = &cobra.Command{
	Use:   "password <user> <password>",
	Short: "Changes the portal password of a user, an empty password disables the user.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a, done := openApp(cmd.Context())
		defer done()

		err := a.SetPassword(cmd.Context(), args[0], args[1])
		if err != nil {
			fatalerr("failed to set password", err)
		}
	},
}

var channelUsage = map[string]string{
	notify.KindPushover: "pushover <user> <user key>",
	notify.KindMail:     "mail <user> <address>",
	notify.KindTelegram: "telegram <user> <chat id>",
	notify.KindFake:     "fake <user> <file>",
	notify.KindNone:     "none <user>",
}

func channelCmd(kind string) *cobra.Command {
	args := cobra.ExactArgs(2)
	if kind == notify.KindNone {
		args = cobra.ExactArgs(1)
	}
	return &cobra.Command{
		Use:   channelUsage[kind],
		Short: "Notifies the user via " + kind + ".",
		Args:  args,
		Run: func(cmd *cobra.Command, args []string) {
			a, done := openApp(cmd.Context())
			defer done()

			info := ""
			if len(args) == 2 {
				info = args[1]
			}
			err := a.SetChannel(cmd.Context(), args[0], kind, info)
			if err != nil {
				fatalerr("failed to set notification channel", err)
			}
		},
	}
}

var userCalendarCmd = &cobra.Command{
	Use:   "calendar <user> <caldav username> <caldav password> <calendar name>",
	Short: "Exports the calendar of a user into an external CalDAV calendar.",
	Args:  cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		a, done := openApp(cmd.Context())
		defer done()

		err := a.SetCalendar(cmd.Context(), args[0], args[1], args[2], args[3])
		if err != nil {
			fatalerr("failed to set calendar", err)
		}
	},
}

var userInvitationCmd = &cobra.Command{
	Use:   "invitation <user> [address]",
	Short: "Mails calendar invitations to an address, without one invitations are disabled.",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		a, done := openApp(cmd.Context())
		defer done()

		address := ""
		if len(args) == 2 {
			address = args[1]
		}
		err := a.SetInvitation(cmd.Context(), args[0], address)
		if err != nil {
			fatalerr("failed to set invitation address", err)
		}
	},
}

var userStatusAlertsCmd = &cobra.Command{
	Use:   "status-alerts <user> <on|off>",
	Short: "Tells the user when polling their account keeps failing and when it recovers.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var want bool
		switch args[1] {
		case "on":
			want = true
		case "off":
		default:
			fatalerr("invalid argument", fmt.Errorf("expected on or off, got %q", args[1]))
		}

		a, done := openApp(cmd.Context())
		defer done()

		err := a.SetStatusAlerts(cmd.Context(), args[0], want)
		if err != nil {
			fatalerr("failed to set status alerts", err)
		}
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists all users with their configuration and last status.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, done := openApp(cmd.Context())
		defer done()

		users, err := a.ListUsers(cmd.Context())
		if err != nil {
			fatalerr("failed to list users", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"User", "Enabled", "Channel", "Calendar", "Invitation", "Alerts", "Status", "Checked"})
		for _, u := range users {
			var state, checked string
			switch {
			case u.Checked.IsZero():
			case u.Ok:
				state = "ok"
				checked = u.Checked.Format(time.DateTime)
			default:
				state = fmt.Sprintf("failed %dx: %s", u.Degraded, u.Info)
				checked = u.Checked.Format(time.DateTime)
			}
			t.AppendRow(table.Row{u.Name, u.Enabled, u.Channel, u.Calendar, u.Invitation, u.StatusAlerts, state, checked})
		}
		t.Render()
	},
}
