package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"infomentor-notifier/internal/calendar"
	"infomentor-notifier/internal/components/db"
	"infomentor-notifier/internal/informer"
	"infomentor-notifier/internal/notify"

	"github.com/gregdel/pushover"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// nullCalendarName is the calendar entries are "exported" to while a user has no external
// calendar.
const nullCalendarName = "none"

func (a *App) telegramBot() (*tgbotapi.BotAPI, error) {
	if a.telegram != nil {
		return a.telegram, nil
	}
	if a.Config.TelegramToken == "" {
		return nil, fmt.Errorf("no telegram token configured")
	}
	bot, err := tgbotapi.NewBotAPI(a.Config.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	a.telegram = bot
	return bot, nil
}

// Channel builds the notification channel a user configured, users without one get
// notify.NoneChannel.
func (a *App) Channel(ctx context.Context, user db.User) (notify.Channel, error) {
	n, err := a.Qry.GetNotification(ctx, user.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return notify.NoneChannel{}, nil
	}
	if err != nil {
		return nil, err
	}

	switch n.Kind {
	case notify.KindPushover:
		if a.Pushover == nil {
			if a.Config.PushoverToken == "" {
				return nil, fmt.Errorf("no pushover token configured")
			}
			a.Pushover = pushover.New(a.Config.PushoverToken)
		}
		return notify.NewPushoverChannel(a.Pushover, n.Info), nil
	case notify.KindMail:
		if a.Config.Smtp.Server == "" {
			return nil, fmt.Errorf("no smtp server configured")
		}
		if a.Config.MailFrom == "" {
			return nil, fmt.Errorf("no mail sender configured")
		}
		return notify.NewMailChannel(
			notify.NewSmtpMailer(a.Config.Smtp),
			a.Config.MailFrom,
			n.Info,
			a.Config.AdminEmail,
			a.Tel,
		), nil
	case notify.KindTelegram:
		chatId, err := strconv.ParseInt(n.Info, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram chat id %q: %w", n.Info, err)
		}
		bot, err := a.telegramBot()
		if err != nil {
			return nil, err
		}
		return notify.NewTelegramChannel(bot, chatId), nil
	case notify.KindFake:
		return notify.NewFakeChannel(n.Info), nil
	case notify.KindNone:
		return notify.NoneChannel{}, nil
	}
	return nil, fmt.Errorf("unknown notification kind %q", n.Kind)
}

// Inviter returns nil when invitations cannot be sent.
func (a *App) Inviter() informer.Inviter {
	if a.Config.Smtp.Server == "" || a.Config.MailFrom == "" {
		return nil
	}
	inviter := calendar.NewInviter(notify.NewSmtpMailer(a.Config.Smtp), a.Config.MailFrom, a.Time)
	return inviter
}

// Exporter builds the calendar exporter of a user and the name of the calendar to export
// into. Users without calendar credentials export into calendar.NullSink.
func (a *App) Exporter(ctx context.Context, user db.User) (*calendar.Exporter, string, error) {
	cred, err := a.Qry.GetCalendarCredential(ctx, user.ID)
	if errors.Is(err, sql.ErrNoRows) {
		exporter := calendar.NewExporter(calendar.NullSink{}, a.Time, a.Tel)
		return &exporter, nullCalendarName, nil
	}
	if err != nil {
		return nil, "", err
	}

	password, err := a.Box.Open(cred.EncPassword)
	if err != nil {
		return nil, "", fmt.Errorf("open calendar password: %w", err)
	}
	dav, err := calendar.NewCalDAV(a.Config.CalDAVUrl, cred.Username, password, a.Tel)
	if err != nil {
		return nil, "", err
	}
	exporter := calendar.NewExporter(dav, a.Time, a.Tel)
	return &exporter, cred.CalendarName, nil
}
