package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryAPI forwards broken components to sentry and delegates everything to an inner API.
type SentryAPI struct {
	inner API
}

// NewSentryAPI initializes the global sentry client, an empty dsn returns inner unchanged.
func NewSentryAPI(dsn, environment string, inner API) (API, func(), error) {
	if dsn == "" {
		return inner, func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init sentry: %w", err)
	}
	flush := func() {
		sentry.Flush(5 * time.Second)
	}
	return SentryAPI{inner: inner}, flush, nil
}

func (s SentryAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(id, params...)

	var cause error
	for _, p := range params {
		if err, ok := p.(error); ok {
			cause = err
			break
		}
	}
	if cause == nil {
		cause = fmt.Errorf("broken component")
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", id)
		for i, p := range params {
			scope.SetExtra(fmt.Sprintf("params.%d", i), fmt.Sprint(p))
		}
		sentry.CaptureException(fmt.Errorf("%s: %w", id, cause))
	})
}

func (s SentryAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(id, params...)
}

func (s SentryAPI) ReportInfo(msg string, params ...any) {
	s.inner.ReportInfo(msg, params...)
}

func (s SentryAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(msg, params...)
}

func (s SentryAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(id, count)
}
