package lgr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ConsoleHandler writes one human readable line per record with a colored level.
type ConsoleHandler struct {
	opts    slog.HandlerOptions
	mu      *sync.Mutex
	w       io.Writer
	attrs   []slog.Attr
	groups  []string
	noColor bool
}

func NewConsoleHandler(w io.Writer, opts *slog.HandlerOptions) *ConsoleHandler {
	h := &ConsoleHandler{
		mu: &sync.Mutex{},
		w:  w,
	}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	buf.WriteString(r.Time.Format("15:04:05.000"))
	buf.WriteByte(' ')
	buf.WriteString(h.level(r.Level))
	buf.WriteByte(' ')
	buf.WriteString(r.Message)

	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		h.appendAttr(&buf, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&buf, prefix, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *ConsoleHandler) level(l slog.Level) string {
	label := fmt.Sprintf("%-5s", l.String())
	if h.noColor {
		return label
	}

	switch {
	case l >= slog.LevelError:
		return color.RedString(label)
	case l >= slog.LevelWarn:
		return color.YellowString(label)
	case l >= slog.LevelInfo:
		return color.BlueString(label)
	default:
		return color.MagentaString(label)
	}
}

func (h *ConsoleHandler) appendAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	if h.opts.ReplaceAttr != nil && a.Value.Kind() != slog.KindGroup {
		a = h.opts.ReplaceAttr(nil, a)
	}
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.appendAttr(buf, key, ga)
		}
		return
	}

	buf.WriteByte(' ')
	if h.noColor {
		buf.WriteString(key)
	} else {
		buf.WriteString(color.CyanString(key))
	}
	buf.WriteByte('=')
	fmt.Fprintf(buf, "%v", a.Value.Any())
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	prefix := strings.Join(h.groups, ".")
	clone.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}
