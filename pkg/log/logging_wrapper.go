package log

import (
	"strings"

	"github.com/tacusci/logging/v2"
)

var Debug = func(format string, a ...interface{}) {
	logging.Debug(format, a...) //nolint
}

var Info = func(format string, a ...interface{}) {
	logging.Info(format, a...) //nolint
}

var Warn = func(format string, a ...interface{}) {
	logging.Warn(format, a...) //nolint
}

var Error = func(format string, a ...interface{}) {
	logging.Error(format, a...) //nolint
}

var Fatal = func(format string, a ...interface{}) {
	logging.Fatal(format, a...) //nolint
}

// SetLevel maps a config/env level name onto the logging level.
// Unknown or empty names fall back to warn.
func SetLevel(level string) {
	logging.CallbackLabelLevel = 5
	logging.ColorLogLevelLabelOnly = true
	logging.CallbackLabel = false

	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		logging.CurrentLoggingLevel = logging.SilentLevel
	case "info":
		logging.CurrentLoggingLevel = logging.InfoLevel
	case "debug":
		logging.CurrentLoggingLevel = logging.DebugLevel
		logging.CallbackLabel = true
	default:
		logging.CurrentLoggingLevel = logging.WarnLevel
	}
}

// Silence turns all output off and returns a func restoring the previous level.
func Silence() func() {
	existing := logging.CurrentLoggingLevel
	logging.CurrentLoggingLevel = logging.SilentLevel
	return func() { logging.CurrentLoggingLevel = existing }
}
