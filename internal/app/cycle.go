package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"infomentor-notifier/internal/calendar"
	"infomentor-notifier/internal/components/chrono"
	"infomentor-notifier/internal/components/db"
	"infomentor-notifier/internal/components/lock"
	"infomentor-notifier/internal/informer"
	"infomentor-notifier/internal/notify"
	"infomentor-notifier/internal/scrapers/infomentor"
	"infomentor-notifier/internal/status"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("infomentor-notifier/app")

const (
	report_cycle        = "cycle"
	report_cycle_lock   = "cycle.lock"
	report_cycle_user   = "cycle.user"
	report_cycle_status = "cycle.status"
	report_cycle_alert  = "cycle.alert"
	report_cycle_export = "cycle.export"
)

const statusTitle = "INFOMENTOR status"

// Client opens a portal client for a user with the persisted cookie jar.
func (a *App) Client(user db.User) (*infomentor.Client, error) {
	return infomentor.NewClient(user.Name, infomentor.ClientOptions{
		Config:  a.Config.Portal,
		Cookies: a.Cookies,
		Time:    a.Time,
		Tel:     a.Tel,
		Output:  a.Output,
	})
}

// pollUser runs news, homework and calendar for one user. Content types are independent,
// a failing one does not keep the others from running.
func (a *App) pollUser(ctx context.Context, user db.User, channel notify.Channel) error {
	password, err := a.Box.Open(user.EncPassword)
	if err != nil {
		return fmt.Errorf("open password: %w", err)
	}
	client, err := a.Client(user)
	if err != nil {
		return err
	}
	err = client.EnsureSession(ctx, password)
	if err != nil {
		return err
	}

	// An unusable calendar only disables the export, entries keep their pending hash and
	// go out once the calendar works again.
	exporter, calendarName, err := a.Exporter(ctx, user)
	if err != nil {
		a.Tel.ReportBroken(report_cycle_export, &calendar.SyncError{Op: "connect", Err: err}, user.Name)
		exporter, calendarName = nil, ""
	}

	inf := informer.NewInformer(informer.Options{
		User:          user,
		Portal:        client,
		DB:            a.DB,
		Notifier:      notify.NewDispatcher(channel, a.Config.Files(), a.Time, a.Tel),
		Time:          a.Time,
		Tel:           a.Tel,
		CalendarWeeks: a.Config.CalendarWeeks,
		Inviter:       a.Inviter(),
		Exporter:      exporter,
		CalendarName:  calendarName,
	})

	return errors.Join(
		inf.UpdateNews(ctx),
		inf.UpdateHomework(ctx),
		inf.UpdateCalendar(ctx),
	)
}

// recordStatus stores the outcome of a user's cycle and sends the resulting alert, if any.
// Alert failures are only reported.
func (a *App) recordStatus(ctx context.Context, user db.User, channel notify.Channel, cycleErr error) error {
	var previous *db.ApiStatus
	stored, err := a.Qry.GetApiStatus(ctx, user.ID)
	switch {
	case err == nil:
		previous = &stored
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}

	cycle := status.Cycle{Ok: cycleErr == nil, At: a.Time.Now()}
	if cycleErr != nil {
		cycle.Info = cycleErr.Error()
	}
	next, alert := status.Reconcile(previous, cycle, user.WantStatus)
	next.UserID = user.ID
	err = a.Qry.UpsertApiStatus(ctx, next)
	if err != nil {
		return err
	}

	if alert.Send && channel != nil {
		err = channel.Send(ctx, notify.Message{
			Title:   statusTitle,
			Subject: statusTitle,
			Text:    alert.Text,
			Body:    alert.Text,
		})
		if err != nil {
			a.Tel.ReportWarning(report_cycle_alert, err, user.Name)
		}
	}
	return nil
}

// RunCycle polls every enabled user once. It returns without doing anything when another
// process holds the lock. A failing user never stops the cycle, failures go into the
// user's status.
func (a *App) RunCycle(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "RunCycle")
	defer span.End()

	lease := lock.New(a.Config.LockFile)
	acquired, err := lease.Acquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to acquire lock")
		return err
	}
	if !acquired {
		a.Tel.ReportInfo("another poll cycle holds the lock", lease.Path())
		return nil
	}
	defer func() {
		err := lease.Release()
		if err != nil {
			a.Tel.ReportWarning(report_cycle_lock, err)
		}
	}()

	users, err := a.Qry.ListUsers(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list users")
		return err
	}

	polled := 0
	for _, user := range users {
		if user.EncPassword == "" {
			a.Tel.ReportDebug("user not enabled", user.Name)
			continue
		}
		polled++

		channel, err := a.Channel(ctx, user)
		if err == nil {
			err = a.pollUser(ctx, user, channel)
		}
		if err != nil {
			a.Tel.ReportBroken(report_cycle_user, err, user.Name)
		}
		statusErr := a.recordStatus(ctx, user, channel, err)
		if statusErr != nil {
			a.Tel.ReportBroken(report_cycle_status, statusErr, user.Name)
		}
	}
	span.SetAttributes(attribute.Int("users", polled))
	return nil
}

// Daemon schedules a cycle on every tick of the configured schedule, the caller starts
// and stops `cron`.
func (a *App) Daemon(ctx context.Context, cron chrono.CronAPI) error {
	return cron.Cron(a.Config.Schedule, func() {
		err := a.RunCycle(ctx)
		if err != nil {
			a.Tel.ReportBroken(report_cycle, err)
		}
	})
}
