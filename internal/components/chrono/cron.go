package chrono

import (
	"fmt"

	"infomentor-notifier/internal/components/telemetry"

	"github.com/robfig/cron/v3"
)

// CronAPI schedules callbacks on a five field cron spec.
type CronAPI interface {
	Cron(spec string, callback func()) error
}

// StandardCron runs jobs in the configured zone. Jobs are wrapped with SkipIfStillRunning so
// a poll cycle that overruns its slot is never started twice, and a panicking job is
// reported instead of taking the daemon down.
type StandardCron struct {
	cron *cron.Cron
}

func NewStandardCron(tel telemetry.API, time TimeAPI) StandardCron {
	logger := cronLogger{tel: tel}
	return StandardCron{cron: cron.New(
		cron.WithLogger(logger),
		cron.WithLocation(time.Location()),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)}
}

func (s StandardCron) Cron(spec string, callback func()) error {
	_, err := s.cron.AddFunc(spec, callback)
	return err
}

func (s StandardCron) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and blocks until running jobs are done.
func (s StandardCron) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger forwards the scheduler's own logging, its routine chatter only shows up verbose.
type cronLogger struct {
	tel telemetry.API
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.tel.ReportBroken("cron", append([]any{fmt.Errorf("%s: %w", msg, err)}, keysAndValues...)...)
}
