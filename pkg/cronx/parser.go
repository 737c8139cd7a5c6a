// Package cronx wraps github.com/robfig/cron/v3 with the application's
// standard parser configuration.
package cronx

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// StandardParser returns the application's standard cron expression parser.
//
// It uses the extended 6-field format with a seconds field; the classic
// 5-field format is rejected.
//
// Supported:
//   - field order: [second] [minute] [hour] [day-of-month] [month] [day-of-week]
//   - descriptors: @daily, @hourly, @every <duration>, ...
//
// Examples:
//   - "0 */5 * * * *" : every 5 minutes, at second 0
//   - "@daily"        : every day at midnight
func StandardParser() cron.Parser {
	return cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// Validate reports whether spec is a valid expression for StandardParser.
func Validate(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return fmt.Errorf("cron expression is empty")
	}

	parser := StandardParser()
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	return nil
}
