// Package ui provides colored console output for the CLI.
package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	blue   = color.New(color.FgBlue)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

var out io.Writer = color.Output

// SetOutput redirects all output. Commands point it at cobra's writer;
// nil restores the terminal.
func SetOutput(w io.Writer) {
	if w == nil {
		w = color.Output
	}
	out = w
}

// Output returns the current writer.
func Output() io.Writer {
	return out
}

// line writes one message with an optional icon in c.
func line(c *color.Color, icon, format string, args ...any) {
	if icon != "" {
		format = icon + " " + format
	}
	c.Fprintf(out, format+"\n", args...)
}

func Success(format string, args ...any) { line(green, "✓", format, args...) }
func Error(format string, args ...any) { line(red, "✗", format, args...) }
func Warning(format string, args ...any) { line(yellow, "⚠", format, args...) }
func Info(format string, args ...any) { line(blue, "", format, args...) }
func Header(format string, args ...any) { line(bold, "", format, args...) }

// Money is for ledger totals.
func Money(format string, args ...any) { line(green, "💰", format, args...) }

// Disk is for backup and data-dir lines.
func Disk(format string, args ...any) { line(blue, "💾", format, args...) }

// Step prints a numbered step with a cyan counter.
func Step(n int, format string, args ...any) {
	cyan.Fprintf(out, "[%d] ", n)
	fmt.Fprintf(out, format+"\n", args...)
}

// Field prints an aligned "key: value" line.
func Field(key string, value any) {
	cyan.Fprintf(out, "  %-20s", key+":")
	fmt.Fprintf(out, " %v\n", value)
}

// Plain prints uncolored text.
func Plain(format string, args ...any) {
	fmt.Fprintf(out, format+"\n", args...)
}
