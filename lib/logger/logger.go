package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
)

type Logger interface {
	Debug(log ...any)
	Info(log ...any)
	Error(log ...any)
}

type PrefixedLogger struct {
	Prefix string
	// Debug lines are dropped unless set
	Verbose bool
	// Defaults to stdout
	Out io.Writer
}

func New(prefix string) *PrefixedLogger {
	return &PrefixedLogger{Prefix: prefix}
}

func (pl PrefixedLogger) write(level string, log []any) {
	out := pl.Out
	if out == nil {
		out = os.Stdout
	}
	parts := make([]string, len(log))
	for i, v := range log {
		parts[i] = fmt.Sprint(v)
	}
	fmt.Fprintln(out, "[Prefix: "+pl.Prefix+"] "+level+":", strings.Join(parts, " "))
}

func (pl PrefixedLogger) Debug(log ...any) {
	if !pl.Verbose {
		return
	}
	pl.write("Debug", log)
}

func (pl PrefixedLogger) Info(log ...any) {
	pl.write("Info", log)
}

func (pl PrefixedLogger) Error(log ...any) {
	pl.write("Error", log)
}

// Child loggers share the output and verbosity with a longer prefix
func (pl PrefixedLogger) With(prefix string) *PrefixedLogger {
	return &PrefixedLogger{
		Prefix:  pl.Prefix + "/" + prefix,
		Verbose: pl.Verbose,
		Out:     pl.Out,
	}
}

// Discards everything; used by tests and pure helpers
type Nop struct{}

func (Nop) Debug(...any) {}
func (Nop) Info(...any)  {}
func (Nop) Error(...any) {}

var _ Logger = &PrefixedLogger{}
var _ Logger = Nop{}
