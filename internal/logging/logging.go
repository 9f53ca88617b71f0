package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger is a small console logger. Trailing arguments are rendered as
// key=value pairs when they come in pairs, otherwise appended as-is.
type Logger struct {
	*log.Logger
}

// NewLogger creates a new Logger.
func NewLogger() *Logger {
	return &Logger{
		Logger: log.New(os.Stdout, "", log.LstdFlags),
	}
}

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...any) {
	l.Print("INFO: " + msg + render(args))
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.Print("WARN: " + msg + render(args))
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.Print("ERROR: " + msg + render(args))
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.Print("DEBUG: " + msg + render(args))
}

func render(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	if len(args)%2 == 1 {
		fmt.Fprintf(&b, " %v", args[len(args)-1])
	}
	return b.String()
}
