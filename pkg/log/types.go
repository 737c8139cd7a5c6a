package log

import (
	"github.com/sirupsen/logrus"
)

// Level is an alias for logrus.Level.
type Level = logrus.Level

const (
	// PanicLevel logs and then calls panic(). Reserved for unrecoverable
	// internal errors.
	PanicLevel Level = logrus.PanicLevel

	// FatalLevel logs and then calls os.Exit(1). Used when the process
	// cannot continue, e.g. startup failures.
	FatalLevel Level = logrus.FatalLevel

	// ErrorLevel marks failures that need operator attention but do not
	// terminate the process.
	ErrorLevel Level = logrus.ErrorLevel

	// WarnLevel marks conditions that are not errors yet but deserve a look.
	WarnLevel Level = logrus.WarnLevel

	// InfoLevel records normal operational state changes.
	InfoLevel Level = logrus.InfoLevel

	// DebugLevel records detail useful during development and diagnosis.
	DebugLevel Level = logrus.DebugLevel

	// TraceLevel records the most granular data flow information.
	TraceLevel Level = logrus.TraceLevel
)

// AllLevels is an alias for logrus.AllLevels.
var AllLevels = logrus.AllLevels

// Fields is an alias for logrus.Fields.
type Fields = logrus.Fields

// Entry is an alias for logrus.Entry.
type Entry = logrus.Entry

// Hook is an alias for logrus.Hook.
type Hook = logrus.Hook

// Formatter is an alias for logrus.Formatter.
type Formatter = logrus.Formatter

// TextFormatter is an alias for logrus.TextFormatter.
type TextFormatter = logrus.TextFormatter
