// Package logger is a small leveled logger shared by the library and commands.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

type Loglevel int32

const (
	DEBUG Loglevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var (
	loglevel atomic.Int32
	std      = log.New(os.Stderr, "", log.LstdFlags)
	exit     = os.Exit
)

func init() {
	loglevel.Store(int32(INFO))
}

func (l Loglevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	}
	return fmt.Sprintf("Loglevel(%d)", int(l))
}

// ParseLevel accepts debug, info, warn, warning, error and fatal in any case.
func ParseLevel(s string) (Loglevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	case "fatal":
		return FATAL, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

func SetLogLevel(level Loglevel) {
	loglevel.Store(int32(level))
}

func Level() Loglevel {
	return Loglevel(loglevel.Load())
}

// SetOutput redirects all log output.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

func logf(level Loglevel, format string, a ...interface{}) bool {
	if Level() > level {
		return false
	}
	std.Output(3, level.String()+": "+fmt.Sprintf(format, a...))
	return true
}

func Debugf(format string, a ...interface{}) { logf(DEBUG, format, a...) }

func Infof(format string, a ...interface{}) { logf(INFO, format, a...) }

func Warnf(format string, a ...interface{}) { logf(WARN, format, a...) }

func Errorf(format string, a ...interface{}) { logf(ERROR, format, a...) }

// Fatalf logs and exits with status 1. It never returns, regardless of level.
func Fatalf(format string, a ...interface{}) {
	logf(FATAL, format, a...)
	exit(1)
}
