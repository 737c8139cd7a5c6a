package log

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// hook routes each log event to the writers appropriate for its level.
//
// Routing policy:
//   - Error and above go to the critical writer and the main writer.
//   - Info and Warn go to the main writer only.
//   - Debug and Trace go to the verbose writer only, keeping high-volume
//     diagnostics out of the operational log.
//   - The console writer, when set, receives every level.
type hook struct {
	mainWriter     io.Writer // INFO / WARN / ERROR / FATAL / PANIC
	criticalWriter io.Writer // ERROR / FATAL / PANIC
	verboseWriter  io.Writer // DEBUG / TRACE
	consoleWriter  io.Writer // all levels, stdout mirror

	formatter Formatter

	mu sync.RWMutex // read lock while logging, write lock on close

	closed bool
}

// Levels returns the levels this hook receives.
func (h *hook) Levels() []Level {
	return AllLevels
}

// Fire formats the entry once and distributes it per the routing policy.
func (h *hook) Fire(entry *Entry) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil
	}

	msg, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	var firstErr error

	// A failed stdout write must not affect file logging.
	if h.consoleWriter != nil {
		if _, err := h.consoleWriter.Write(msg); err != nil {
			fmt.Fprintf(os.Stderr, "[LOG-SYSTEM-WARN] console write failed: %v\n", err)
		}
	}

	if entry.Level <= ErrorLevel {
		if h.criticalWriter != nil {
			if _, err := h.criticalWriter.Write(msg); err != nil {
				firstErr = err
				fmt.Fprintf(os.Stderr, "[LOG-SYSTEM-FAILURE] critical log write failed: %v\n", err)
			}
		}
	}

	if entry.Level >= DebugLevel {
		if h.verboseWriter != nil {
			if _, err := h.verboseWriter.Write(msg); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				fmt.Fprintf(os.Stderr, "[LOG-SYSTEM-WARN] verbose log write failed: %v\n", err)
			}
		}

		// Debug/Trace entries never reach the main log.
		return firstErr
	}

	if h.mainWriter != nil {
		if _, err := h.mainWriter.Write(msg); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			fmt.Fprintf(os.Stderr, "[LOG-SYSTEM-FAILURE] main log write failed: %v\n", err)
		}
	}

	return firstErr
}

// Close marks the hook closed so no further entries are written. It waits
// for in-flight Fire calls to drain before returning.
func (h *hook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true

	return nil
}
