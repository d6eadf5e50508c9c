package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Attribute keys the handler lifts out of the key=value tail and prints in
// brackets instead.
const (
	KeySystem  = "system"
	KeyAccount = "account"
	KeyRunID   = "run_id"
)

// runIDWidth is how much of a run id is printed; uuids are unique enough in
// their first eight characters for reading logs.
const runIDWidth = 8

const (
	colorReset = "\033[0m"
	colorGray  = "\033[90m"
)

type levelStyle struct {
	name  string
	color string
}

var levelStyles = map[slog.Level]levelStyle{
	slog.LevelDebug: {"DEBUG", colorGray},
	slog.LevelInfo:  {"INFO", "\033[36m"},
	slog.LevelWarn:  {"WARN", "\033[33m"},
	slog.LevelError: {"ERROR", "\033[31m"},
}

// MavenHandler is a slog.Handler that formats logs in Maven-style with the
// reconciliation context up front:
//
//	[INFO] [reconcile] [14:02:11] [account=35 run=4f0c2d1e] reconciliation complete matched=3
//
// The system, account and run_id attributes are shown in brackets and never
// repeated as key=value pairs. Attributes added with WithAttrs are formatted
// once, when the child handler is created.
type MavenHandler struct {
	out   *syncWriter
	level slog.Leveler
	color bool

	system  string
	account string
	runID   string

	groupPrefix string // "a.b." for WithGroup("a").WithGroup("b")
	preformat   string // attrs from WithAttrs, already rendered
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(p)
	return err
}

// NewMavenHandler creates a new Maven-style handler. Colors are used only
// when w is a terminal.
func NewMavenHandler(w io.Writer, opts *slog.HandlerOptions) *MavenHandler {
	h := &MavenHandler{
		out:   &syncWriter{w: w},
		level: slog.LevelInfo,
		color: isTerminal(w),
	}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Enabled reports whether the handler handles records at the given level.
func (h *MavenHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes a log record
func (h *MavenHandler) Handle(_ context.Context, r slog.Record) error {
	// Record attributes may name the account or run for this line only.
	account, runID := h.account, h.runID
	var tail strings.Builder
	tail.WriteString(h.preformat)
	r.Attrs(func(a slog.Attr) bool {
		if h.groupPrefix == "" {
			switch a.Key {
			case KeySystem:
				return true
			case KeyAccount:
				account = a.Value.String()
				return true
			case KeyRunID:
				runID = a.Value.String()
				return true
			}
		}
		appendAttr(&tail, h.groupPrefix, a)
		return true
	})

	var buf strings.Builder
	style, ok := levelStyles[r.Level]
	if !ok {
		style = levelStyle{name: fmt.Sprintf("LEVEL(%d)", r.Level)}
	}
	h.bracket(&buf, style.name, style.color)
	if h.system != "" {
		buf.WriteString(" ")
		h.bracket(&buf, h.system, "")
	}
	buf.WriteString(" ")
	h.bracket(&buf, r.Time.Format("15:04:05"), colorGray)
	if ctx := runContext(account, runID); ctx != "" {
		buf.WriteString(" ")
		h.bracket(&buf, ctx, "")
	}
	buf.WriteString(" ")
	buf.WriteString(r.Message)
	buf.WriteString(tail.String())
	buf.WriteString("\n")

	return h.out.write([]byte(buf.String()))
}

func (h *MavenHandler) bracket(buf *strings.Builder, text, color string) {
	if h.color && color != "" {
		buf.WriteString(color)
		defer buf.WriteString(colorReset)
	}
	buf.WriteString("[")
	buf.WriteString(text)
	buf.WriteString("]")
}

func runContext(account, runID string) string {
	var parts []string
	if account != "" {
		parts = append(parts, "account="+account)
	}
	if runID != "" {
		if len(runID) > runIDWidth {
			runID = runID[:runIDWidth]
		}
		parts = append(parts, "run="+runID)
	}
	return strings.Join(parts, " ")
}

// appendAttr writes " prefix.key=value". Groups are flattened into the key;
// values with spaces or quotes are quoted.
func appendAttr(buf *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(buf, prefix, ga)
		}
		return
	}

	val := a.Value.String()
	if val == "" || strings.ContainsAny(val, " \t\n\"=") {
		val = strconv.Quote(val)
	}
	buf.WriteString(" ")
	buf.WriteString(prefix)
	buf.WriteString(a.Key)
	buf.WriteString("=")
	buf.WriteString(val)
}

// WithAttrs returns a new handler with the given attributes added
func (h *MavenHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := *h
	var tail strings.Builder
	tail.WriteString(h.preformat)
	for _, a := range attrs {
		if h.groupPrefix == "" {
			switch a.Key {
			case KeySystem:
				c.system = a.Value.String()
				continue
			case KeyAccount:
				c.account = a.Value.String()
				continue
			case KeyRunID:
				c.runID = a.Value.String()
				continue
			}
		}
		appendAttr(&tail, h.groupPrefix, a)
	}
	c.preformat = tail.String()
	return &c
}

// WithGroup returns a new handler with the given group name added
func (h *MavenHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.groupPrefix = h.groupPrefix + name + "."
	return &c
}
