// Package vmlog is a small leveled, TTY-aware colored logger. The VM
// uses it for debug-level GC tracing; the dispatch loop and hot-loop
// tracker do not log. It is not a transcription of any single file in the
// retrieval pack: ProbeChain-go-probe's own `log` package was not part
// of the retrieved pack, but its go.mod pulls in fatih/color plus
// mattn/go-colorable and mattn/go-isatty for exactly this kind of
// TTY-aware CLI diagnostic output, so this wrapper is written in that
// library combination's idiom.
package vmlog

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

type Logger struct {
	out   io.Writer
	level Level
}

// New builds a logger writing to stdout, auto-disabling color when
// stdout is not a terminal (via go-isatty) and wrapping the writer
// through go-colorable so ANSI sequences still render on Windows
// consoles that need translation.
func New(level Level) *Logger {
	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	color.NoColor = !isTTY
	return &Logger{out: colorable.NewColorableStdout(), level: level}
}

func (l *Logger) log(level Level, c *color.Color, prefix, format string, args ...any) {
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(l.out, c.Sprintf("%s %s", prefix, msg))
}

func (l *Logger) Debugf(format string, args ...any) {
	l.log(LevelDebug, color.New(color.FgHiBlack), "[gc]", format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.log(LevelInfo, color.New(color.FgCyan), "[vm]", format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.log(LevelWarn, color.New(color.FgYellow), "[vm]", format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.log(LevelError, color.New(color.FgRed), "[vm]", format, args...)
}

// Discard is a logger that drops everything; used as the default so
// embedding hosts opt into diagnostics explicitly.
func Discard() *Logger { return &Logger{out: io.Discard, level: LevelError + 1} }
