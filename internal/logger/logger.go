// Package logger provides leveled console logging for the figure pipeline.
package logger

import (
	"io"
	"log"
	"os"
	"sync"
)

// Logger provides leveled logging (info/warning/error) to stdout/stderr.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	mu         sync.Mutex
}

// New creates a Logger writing info and warning entries to out and errors to errOut.
func New(out, errOut io.Writer) *Logger {
	return &Logger{
		infoLog:    log.New(out, "INFO    ", log.Ldate|log.Ltime),
		warningLog: log.New(out, "WARNING ", log.Ldate|log.Ltime),
		errorLog:   log.New(errOut, "ERROR   ", log.Ldate|log.Ltime),
	}
}

// NewConsole creates a Logger bound to the process stdout and stderr.
func NewConsole() *Logger {
	return New(os.Stdout, os.Stderr)
}

// Discard returns a Logger that drops every entry.
func Discard() *Logger {
	return New(io.Discard, io.Discard)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Printf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Printf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Printf(format, v...)
}
