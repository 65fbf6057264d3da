package lgr

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mdobak/go-xerrors"
	"github.com/natefinch/lumberjack"
)

// Logger is the process-wide structured logger.
var Logger = slog.New(NewConsoleHandler(os.Stderr, &slog.HandlerOptions{
	Level:       slog.LevelInfo,
	ReplaceAttr: ReplaceAttr,
}))

type Options struct {
	Level      slog.Level
	File       string // empty disables the rotating JSON sink
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	NoColor    bool
}

// Init replaces Logger according to opts. The returned closer flushes the file sink.
func Init(opts Options) io.Closer {
	handlerOpts := &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: ReplaceAttr,
	}

	console := NewConsoleHandler(os.Stderr, handlerOpts)
	console.noColor = opts.NoColor

	if opts.File == "" {
		Logger = slog.New(console)
		return io.NopCloser(nil)
	}

	sink := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    orDefault(opts.MaxSizeMB, 10),
		MaxBackups: orDefault(opts.MaxBackups, 5),
		MaxAge:     orDefault(opts.MaxAgeDays, 7),
		Compress:   true,
	}

	Logger = slog.New(fanout{console, slog.NewJSONHandler(sink, handlerOpts)})
	return sink
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

type stackFrame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}

// ReplaceAttr expands error values into a message plus the stack trace
// recorded by go-xerrors, when there is one.
func ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}

	err, ok := a.Value.Any().(error)
	if !ok {
		return a
	}

	groupValues := []slog.Attr{slog.String("msg", err.Error())}
	if frames := marshalStack(err); len(frames) > 0 {
		groupValues = append(groupValues, slog.Any("trace", frames))
	}
	a.Value = slog.GroupValue(groupValues...)
	return a
}

func marshalStack(err error) []stackFrame {
	trace := xerrors.StackTrace(err)
	if len(trace) == 0 {
		return nil
	}

	frames := trace.Frames()
	s := make([]stackFrame, len(frames))
	for i, v := range frames {
		s[i] = stackFrame{
			Source: filepath.Join(filepath.Base(filepath.Dir(v.File)), filepath.Base(v.File)),
			Func:   filepath.Base(v.Function),
			Line:   v.Line,
		}
	}
	return s
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
