package log

import (
	"fmt"
	"os"
)

// Options configures the logging system.
type Options struct {
	Name  string // application identifier, used for log file names
	Dir   string // directory where log files are written
	Level Level  // minimum level to record

	MaxAge     int // days to keep rotated files (0: keep forever)
	MaxSizeMB  int // rotation threshold in MB (0: default 100MB)
	MaxBackups int // rotated files to keep (0: default 20)

	EnableCriticalLog bool // isolate ERROR and above into a separate file
	EnableVerboseLog  bool // isolate DEBUG and below into a separate file
	EnableConsoleLog  bool // mirror all levels to stdout

	// ReportCaller records the source location (file:line) of each log call.
	ReportCaller bool

	// CallerPathPrefix shortens caller paths in output. With prefix
	// "github.com/quimera", "github.com/quimera/catalog-ingest/pkg/log"
	// renders as ".../catalog-ingest/pkg/log".
	CallerPathPrefix string
}

// Validate checks the option values for consistency.
func (opts *Options) Validate() error {
	if opts.Name == "" {
		return fmt.Errorf("application identifier (Name) is not set")
	}

	if opts.Dir != "" {
		if info, err := os.Stat(opts.Dir); err == nil && !info.IsDir() {
			return fmt.Errorf("log directory path (%s) already exists as a file", opts.Dir)
		}
	}

	if opts.MaxAge < 0 {
		return fmt.Errorf("MaxAge must be >= 0: %d", opts.MaxAge)
	}
	if opts.MaxSizeMB < 0 {
		return fmt.Errorf("MaxSizeMB must be >= 0: %d", opts.MaxSizeMB)
	}
	if opts.MaxBackups < 0 {
		return fmt.Errorf("MaxBackups must be >= 0: %d", opts.MaxBackups)
	}

	return nil
}

// NewProductionOptions returns log settings tuned for production use.
func NewProductionOptions(appName string) Options {
	return Options{
		Name:  appName,
		Level: InfoLevel,

		MaxAge:     30,
		MaxSizeMB:  100,
		MaxBackups: 20,

		EnableCriticalLog: true,
		EnableVerboseLog:  true,
		EnableConsoleLog:  false,

		ReportCaller:     true,
		CallerPathPrefix: "github.com/quimera",
	}
}

// NewDevelopmentOptions returns log settings tuned for local development.
func NewDevelopmentOptions(appName string) Options {
	return Options{
		Name:  appName,
		Level: TraceLevel,

		MaxAge:     1,
		MaxSizeMB:  50,
		MaxBackups: 5,

		EnableCriticalLog: false,
		EnableVerboseLog:  false,
		EnableConsoleLog:  true,

		ReportCaller:     true,
		CallerPathPrefix: "github.com/quimera",
	}
}
