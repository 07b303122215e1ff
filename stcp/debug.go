package stcp

import (
	"context"
	"log/slog"
)

// levelTrace sits below slog.LevelDebug for the segment-by-segment traces
// that are too noisy to enable alongside ordinary debug logging.
const levelTrace slog.Level = slog.LevelDebug - 2

// logger is embedded by types that want optional, zero-cost-when-disabled
// structured logging. The zero value discards everything.
type logger struct {
	log *xidLogger
}

// xidLogger pairs a *slog.Logger with the connection id it should tag every
// record with, so engines sharing one io.Writer remain attributable.
type xidLogger struct {
	base *slog.Logger
	id   string
}

func newLogger(log *slog.Logger, id string) logger {
	if log == nil {
		return logger{}
	}
	return logger{log: &xidLogger{base: log, id: id}}
}

func (l logger) enabled(lvl slog.Level) bool {
	return l.log != nil && l.log.base.Handler().Enabled(context.Background(), lvl)
}

func (l logger) logAttrs(lvl slog.Level, msg string, attrs ...slog.Attr) {
	if l.log == nil {
		return
	}
	if l.log.id != "" {
		attrs = append(attrs, slog.String("conn", l.log.id))
	}
	l.log.base.LogAttrs(context.Background(), lvl, msg, attrs...)
}

func (l logger) trace(msg string, attrs ...slog.Attr) { l.logAttrs(levelTrace, msg, attrs...) }
func (l logger) debug(msg string, attrs ...slog.Attr) { l.logAttrs(slog.LevelDebug, msg, attrs...) }
func (l logger) info(msg string, attrs ...slog.Attr)  { l.logAttrs(slog.LevelInfo, msg, attrs...) }
func (l logger) warn(msg string, attrs ...slog.Attr)  { l.logAttrs(slog.LevelWarn, msg, attrs...) }
func (l logger) errlog(msg string, attrs ...slog.Attr) {
	l.logAttrs(slog.LevelError, msg, attrs...)
}

func (l logger) traceSeg(msg string, seg Segment) {
	if !l.enabled(levelTrace) {
		return
	}
	l.trace(msg,
		slog.Uint64("seg.seq", uint64(seg.Seq)),
		slog.Uint64("seg.ack", uint64(seg.Ack)),
		slog.Uint64("seg.wnd", uint64(seg.Window)),
		slog.String("seg.flags", seg.Flags.String()),
		slog.Int("seg.datalen", len(seg.Payload)),
	)
}
