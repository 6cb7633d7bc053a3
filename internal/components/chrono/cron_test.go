package chrono

import (
	"errors"
	"testing"
	"time"

	"infomentor-notifier/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestStandardCron(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	cron := NewStandardCron(&telemetry.Recorder{}, StaticTime{At: time.Date(2024, 3, 4, 8, 0, 0, 0, berlin)})

	require.NoError(t, cron.Cron("*/10 * * * *", func() {}))
	require.Error(t, cron.Cron("every ten minutes", func() {}))

	cron.Start()
	cron.Stop()
}

func TestCronLogger(t *testing.T) {
	rec := &telemetry.Recorder{}
	logger := cronLogger{tel: rec}

	logger.Info("wake", "now", "08:00")
	logger.Error(errors.New("boom"), "panic", "stack", "...")

	require.Len(t, rec.Reports("debug", "cron: wake"), 1)
	broken := rec.Reports("broken", "cron")
	require.Len(t, broken, 1)
	require.ErrorContains(t, broken[0].Params[0].(error), "panic: boom")
	require.Equal(t, []any{"stack", "..."}, broken[0].Params[1:])
}
