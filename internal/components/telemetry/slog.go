package telemetry

import (
	"log/slog"
	"os"
	"strconv"
)

// InitSlog installs a text handler on stderr as the default logger, verbose lowers the
// level to debug.
func InitSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// slogAttrs turns report params into attributes, errors are logged under "err" and
// everything else under its position.
func slogAttrs(params []any, head ...any) []any {
	out := head
	for i, p := range params {
		if err, ok := p.(error); ok {
			out = append(out, slog.String("err", err.Error()))
			continue
		}
		out = append(out, slog.Any("p"+strconv.Itoa(i), p))
	}
	return out
}

// SlogAPI reports to the default slog logger.
type SlogAPI struct{}

func (SlogAPI) ReportBroken(id string, params ...any) {
	slog.Error("broken", slogAttrs(params, "id", id)...)
}

func (SlogAPI) ReportWarning(id string, params ...any) {
	slog.Warn("warning", slogAttrs(params, "id", id)...)
}

func (SlogAPI) ReportInfo(msg string, params ...any) {
	slog.Info(msg, slogAttrs(params)...)
}

func (SlogAPI) ReportDebug(msg string, params ...any) {
	slog.Debug(msg, slogAttrs(params)...)
}

func (SlogAPI) ReportCount(id string, count int64) {
	slog.Info("count", "id", id, "n", count)
}
