// Package logging provides a colorized slog handler for interactive use.
// Library packages accept any *slog.Logger; this handler only changes how
// records are rendered.
package logging

import (
	"context"
	"io"
	"log"
	"log/slog"
	"strings"

	"github.com/fatih/color"
)

type HandlerOpts struct {
	SlogOpts slog.HandlerOptions
}

type Handler struct {
	slog.Handler
	l     *log.Logger
	attrs []slog.Attr
}

func NewHandler(out io.Writer, opts HandlerOpts) *Handler {
	return &Handler{
		Handler: slog.NewJSONHandler(out, &opts.SlogOpts),
		l:       log.New(out, "", 0),
	}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	switch r.Level {
	case slog.LevelDebug:
		level = color.WhiteString(level)
	case slog.LevelInfo:
		level = color.GreenString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	default:
		level = color.HiWhiteString(level)
	}
	var b strings.Builder
	b.WriteString(r.Time.Format("[15:04:05]"))
	b.WriteString(" " + level)
	b.WriteString(" " + color.HiWhiteString(r.Message))
	for _, a := range h.attrs {
		b.WriteString(" " + color.WhiteString("%s=%v", a.Key, a.Value.Any()))
	}
	r.Attrs(func(a slog.Attr) bool {
		b.WriteString(" " + color.WhiteString("%s=%v", a.Key, a.Value.Any()))
		return true
	})
	h.l.Println(b.String())
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		Handler: h.Handler.WithAttrs(attrs),
		l:       h.l,
		attrs:   append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	// Groups are rare in this codebase; fold the name into a prefix attr.
	return h.WithAttrs([]slog.Attr{slog.String("group", name)})
}
