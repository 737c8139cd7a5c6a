package log

import (
	log "github.com/sirupsen/logrus"
)

// StandardLogger returns the process-wide logger. Libraries that want a
// plain logrus logger (cron, echo) plug in here.
func StandardLogger() *log.Logger {
	return log.StandardLogger()
}

// SetDebugMode adjusts the global log level.
//   - debug mode: Trace level (everything)
//   - normal mode: Info level
func SetDebugMode(debug bool) {
	if debug {
		log.SetLevel(log.TraceLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// MaskSensitiveData masks tokens, keys and other secrets so they can be
// logged safely.
func MaskSensitiveData(data string) string {
	if data == "" {
		return ""
	}

	// mask short values entirely
	if len(data) <= 3 {
		return "***"
	}

	if len(data) <= 12 {
		return data[:4] + "***"
	}

	// long tokens keep the first and last 4 characters
	return data[:4] + "***" + data[len(data)-4:]
}

// WithComponent returns an Entry tagged with a component field. Every log
// line in the application carries this field for filtering.
func WithComponent(component string) *log.Entry {
	return log.WithFields(log.Fields{
		"component": component,
	})
}

// WithComponentAndFields returns an Entry tagged with a component field plus
// the given extra fields.
func WithComponentAndFields(component string, fields log.Fields) *log.Entry {
	newFields := make(log.Fields, len(fields)+1)
	for k, v := range fields {
		newFields[k] = v
	}
	newFields["component"] = component
	return log.WithFields(newFields)
}
