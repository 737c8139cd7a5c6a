package log

import (
	"errors"
	"io"
	"sync/atomic"
)

// closer releases the log file resources (main, critical, verbose) as one
// unit. Closing is idempotent, and the hook is disabled before any file is
// closed so that no entry is written to a closed file.
type closer struct {
	closers []io.Closer

	hook *hook

	// closed prevents double Close (0: open, 1: closed)
	closed int32
}

func (c *closer) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	// Stop log intake first to avoid writes racing with file closes.
	if c.hook != nil {
		c.hook.Close()
	}

	// Close every resource even when some of them fail.
	var errs error
	for _, closer := range c.closers {
		if closer != nil {
			if s, ok := closer.(interface{ Sync() error }); ok {
				_ = s.Sync()
			}

			if err := closer.Close(); err != nil {
				errs = errors.Join(errs, err)
			}
		}
	}

	return errs
}
