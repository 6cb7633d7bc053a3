package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"infomentor-notifier/internal/components/db"
	"infomentor-notifier/internal/notify"
	"infomentor-notifier/internal/scrapers/infomentor"
)

var ErrUnknownUser = errors.New("unknown user")

func (a *App) user(ctx context.Context, name string) (db.User, error) {
	user, err := a.Qry.GetUserByName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return db.User{}, fmt.Errorf("%w: %s", ErrUnknownUser, name)
	}
	return user, err
}

// AddUser creates a user, or changes the password of an existing one. An empty password
// leaves the user disabled.
func (a *App) AddUser(ctx context.Context, name, password string) error {
	sealed, err := a.Box.Seal(password)
	if err != nil {
		return err
	}
	user, err := a.Qry.GetUserByName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = a.Qry.CreateUser(ctx, db.CreateUserParams{Name: name, EncPassword: sealed})
		return err
	}
	if err != nil {
		return err
	}
	return a.Qry.UpdateUserPassword(ctx, user.ID, sealed)
}

func (a *App) SetPassword(ctx context.Context, name, password string) error {
	user, err := a.user(ctx, name)
	if err != nil {
		return err
	}
	sealed, err := a.Box.Seal(password)
	if err != nil {
		return err
	}
	return a.Qry.UpdateUserPassword(ctx, user.ID, sealed)
}

// SetChannel configures how a user is notified. `info` is the pushover user key, the mail
// address, the telegram chat id or the fake channel's file depending on kind.
func (a *App) SetChannel(ctx context.Context, name, kind, info string) error {
	if !slices.Contains(notify.Kinds, kind) {
		return fmt.Errorf("unknown notification kind %q", kind)
	}
	if kind == notify.KindTelegram {
		_, err := strconv.ParseInt(info, 10, 64)
		if err != nil {
			return fmt.Errorf("telegram chat id %q: %w", info, err)
		}
	}
	if kind != notify.KindNone && info == "" {
		return fmt.Errorf("%s needs a destination", kind)
	}
	user, err := a.user(ctx, name)
	if err != nil {
		return err
	}
	return a.Qry.SetNotification(ctx, db.Notification{UserID: user.ID, Kind: kind, Info: info})
}

// SetCalendar stores the external calendar credentials of a user. Every stored entry is
// pushed again on the next cycle since the new calendar has none of them.
func (a *App) SetCalendar(ctx context.Context, name, username, password, calendarName string) error {
	if calendarName == "" {
		return fmt.Errorf("a calendar name is required")
	}
	user, err := a.user(ctx, name)
	if err != nil {
		return err
	}
	sealed, err := a.Box.Seal(password)
	if err != nil {
		return err
	}
	return db.RunTx(ctx, a.DB, func(tx *db.Queries) error {
		err := tx.SetCalendarCredential(ctx, db.CalendarCredential{
			UserID:       user.ID,
			Username:     username,
			EncPassword:  sealed,
			CalendarName: calendarName,
		})
		if err != nil {
			return err
		}
		return tx.ResetCalendarExports(ctx, user.ID)
	})
}

// SetInvitation sets the address calendar invitations are mailed to, empty disables them.
func (a *App) SetInvitation(ctx context.Context, name, email string) error {
	user, err := a.user(ctx, name)
	if err != nil {
		return err
	}
	return a.Qry.SetInvitationEmail(ctx, user.ID, email)
}

func (a *App) SetStatusAlerts(ctx context.Context, name string, want bool) error {
	user, err := a.user(ctx, name)
	if err != nil {
		return err
	}
	return a.Qry.SetWantStatus(ctx, user.ID, want)
}

type UserSummary struct {
	Name         string
	Enabled      bool
	Channel      string
	Calendar     string
	Invitation   string
	StatusAlerts bool
	// Ok and Degraded are the last recorded status, Checked is zero before the first cycle.
	Ok       bool
	Degraded int64
	Info     string
	Checked  time.Time
}

func (a *App) ListUsers(ctx context.Context) ([]UserSummary, error) {
	users, err := a.Qry.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	var out []UserSummary
	for _, user := range users {
		summary := UserSummary{
			Name:         user.Name,
			Enabled:      user.EncPassword != "",
			Channel:      notify.KindNone,
			Invitation:   user.InvitationEmail,
			StatusAlerts: user.WantStatus,
		}

		n, err := a.Qry.GetNotification(ctx, user.ID)
		switch {
		case err == nil:
			summary.Channel = n.Kind
		case !errors.Is(err, sql.ErrNoRows):
			return nil, err
		}

		cred, err := a.Qry.GetCalendarCredential(ctx, user.ID)
		switch {
		case err == nil:
			summary.Calendar = cred.CalendarName
		case !errors.Is(err, sql.ErrNoRows):
			return nil, err
		}

		s, err := a.Qry.GetApiStatus(ctx, user.ID)
		switch {
		case err == nil:
			summary.Ok = s.Ok
			summary.Degraded = s.DegradedCount
			summary.Info = s.Info
			summary.Checked = time.Unix(s.Datetime, 0).In(a.Time.Location())
		case !errors.Is(err, sql.ErrNoRows):
			return nil, err
		}

		out = append(out, summary)
	}
	return out, nil
}

// Timetable logs in as a user and fetches the timetable of the week `offset` weeks back.
func (a *App) Timetable(ctx context.Context, name string, offset int) ([]infomentor.TimetableEntry, error) {
	user, err := a.user(ctx, name)
	if err != nil {
		return nil, err
	}
	password, err := a.Box.Open(user.EncPassword)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, fmt.Errorf("user %s is not enabled", name)
	}
	client, err := a.Client(user)
	if err != nil {
		return nil, err
	}
	err = client.EnsureSession(ctx, password)
	if err != nil {
		return nil, err
	}
	return client.Timetable(ctx, offset)
}
