package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

var defaultLogger *slog.Logger

// ParseLevel converts a string log level to slog.Level. Valid levels:
// debug, info, warn/warning, error. config.LoggerConfig.Validate already
// rejects anything else before this is called from the CLI, but callers
// that skip that gate (tests, embedders) get a real error instead of a
// silently substituted level.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logger: unknown level %q", levelStr)
	}
}

// dedupeWindow is how long a repeated (level, message) pair is suppressed
// after its first occurrence within the window.
const dedupeWindow = 10 * time.Second

// dedupeHandler suppresses repeated identical (level, message) log lines
// within dedupeWindow. A simulation run drives potentially hundreds of
// rounds against the same few failure modes (an unreachable LM binding, a
// consistently malformed grammar response); without suppression, a single
// misconfigured agent can emit the same warning once per round for the
// whole run and bury everything else on stderr. The first occurrence and
// the first occurrence after the window closes both pass through; a
// "suppressed" attribute carrying the number of dropped repeats is
// attached to the record that reopens the window, so nothing is silently
// dropped unrecorded.
type dedupeHandler struct {
	handler slog.Handler

	mu       *sync.Mutex
	lastSeen map[string]time.Time
	counts   map[string]int
}

func newDedupeHandler(h slog.Handler) *dedupeHandler {
	return &dedupeHandler{
		handler:  h,
		mu:       &sync.Mutex{},
		lastSeen: make(map[string]time.Time),
		counts:   make(map[string]int),
	}
}

func dedupeKey(record slog.Record) string {
	return record.Level.String() + "|" + record.Message
}

func (h *dedupeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *dedupeHandler) Handle(ctx context.Context, record slog.Record) error {
	key := dedupeKey(record)

	h.mu.Lock()
	last, seen := h.lastSeen[key]
	now := record.Time
	if now.IsZero() {
		now = time.Now()
	}
	suppress := seen && now.Sub(last) < dedupeWindow
	if suppress {
		h.counts[key]++
		h.mu.Unlock()
		return nil
	}
	repeated := h.counts[key]
	h.lastSeen[key] = now
	h.counts[key] = 0
	h.mu.Unlock()

	if repeated > 0 {
		record = record.Clone()
		record.AddAttrs(slog.Int("suppressed", repeated))
	}
	return h.handler.Handle(ctx, record)
}

func (h *dedupeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dedupeHandler{handler: h.handler.WithAttrs(attrs), mu: h.mu, lastSeen: h.lastSeen, counts: h.counts}
}

func (h *dedupeHandler) WithGroup(name string) slog.Handler {
	return &dedupeHandler{handler: h.handler.WithGroup(name), mu: h.mu, lastSeen: h.lastSeen, counts: h.counts}
}

// getLevelColor returns the ANSI color code for a log level.
func getLevelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m" // red
	case level >= slog.LevelWarn:
		return "\033[33m" // yellow
	case level >= slog.LevelInfo:
		return "\033[36m" // cyan
	default:
		return "\033[90m" // gray
	}
}

// isTerminal reports whether file is attached to a terminal.
func isTerminal(file *os.File) bool {
	if fileInfo, err := file.Stat(); err == nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// lineHandler renders one of two flat line formats: "LEVEL message k=v..."
// ("simple") or "time LEVEL message k=v..." ("verbose"). useColor wraps
// only the level token in an ANSI color when writing to a terminal; the
// underlying handler is consulted only for Enabled/WithAttrs/WithGroup
// bookkeeping, since this handler owns its own formatting.
type lineHandler struct {
	handler  slog.Handler
	writer   io.Writer
	useColor bool
	withTime bool
}

func (h *lineHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *lineHandler) Handle(ctx context.Context, record slog.Record) error {
	var buf strings.Builder

	if h.withTime && !record.Time.IsZero() {
		buf.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	}

	levelStr := record.Level.String()
	if levelStr == "WARNING" {
		levelStr = "WARN"
	}
	if h.useColor {
		buf.WriteString(getLevelColor(record.Level))
		buf.WriteString(levelStr)
		buf.WriteString("\033[0m")
	} else {
		buf.WriteString(levelStr)
	}
	buf.WriteString(" ")
	buf.WriteString(record.Message)

	record.Attrs(func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	})
	buf.WriteString("\n")

	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &lineHandler{handler: h.handler.WithAttrs(attrs), writer: h.writer, useColor: h.useColor, withTime: h.withTime}
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	return &lineHandler{handler: h.handler.WithGroup(name), writer: h.writer, useColor: h.useColor, withTime: h.withTime}
}

// Init sets up the process-wide logger at level, writing to output in the
// requested format ("simple": level + message; "verbose": time + level +
// message; anything else falls back to slog's own text format). Color is
// enabled automatically when output is a terminal. Every record passes
// through a dedupeHandler first, so repeated warnings from a misbehaving
// agent binding do not flood a long multi-round run.
func Init(level slog.Level, output *os.File, format string) {
	useColor := isTerminal(output)
	verbose := format == "verbose"
	simple := format == "simple" || format == ""

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && a.Value.String() == "WARNING" {
				return slog.String("level", "WARN")
			}
			return a
		},
	}
	baseHandler := slog.NewTextHandler(output, opts)

	var handler slog.Handler = baseHandler
	if simple || verbose {
		handler = &lineHandler{
			handler:  baseHandler,
			writer:   output,
			useColor: useColor,
			withTime: verbose,
		}
	}

	defaultLogger = slog.New(newDedupeHandler(handler))
	slog.SetDefault(defaultLogger)
}

// OpenLogFile opens or creates a log file at path for appending.
func OpenLogFile(path string) (*os.File, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { file.Close() }, nil
}

// GetLogger returns the process-wide logger, initializing it at info
// level with the simple format to stderr if Init has not run yet.
func GetLogger() *slog.Logger {
	if defaultLogger == nil {
		Init(slog.LevelInfo, os.Stderr, "simple")
	}
	return defaultLogger
}
