package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	clog "github.com/charmbracelet/log"
)

// L is the package-level logger shared by every component.
var L = clog.NewWithOptions(os.Stderr, clog.Options{ReportTimestamp: true})

// Configure sets level and output format ("text", "logfmt" or "json").
func Configure(w io.Writer, level, format string) error {
	lvl, err := clog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logger := clog.NewWithOptions(w, clog.Options{ReportTimestamp: true})
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		logger.SetFormatter(clog.TextFormatter)
	case "logfmt":
		logger.SetFormatter(clog.LogfmtFormatter)
	case "json":
		logger.SetFormatter(clog.JSONFormatter)
	default:
		return fmt.Errorf("unsupported log format %q", format)
	}

	L = logger
	return nil
}

// Debugf logs a debug-level formatted message.
func Debugf(format string, v ...interface{}) {
	L.Debug(fmt.Sprintf(format, v...))
}

// Infof logs an info-level formatted message.
func Infof(format string, v ...interface{}) {
	L.Info(fmt.Sprintf(format, v...))
}

// Warnf logs a warning-level formatted message.
func Warnf(format string, v ...interface{}) {
	L.Warn(fmt.Sprintf(format, v...))
}

// Errorf logs an error-level formatted message.
func Errorf(format string, v ...interface{}) {
	L.Error(fmt.Sprintf(format, v...))
}
