package fetcher

import (
	"io"
	"sync"
)

// maxDrainBytes caps how much of a response body is read before closing it.
// Draining lets the keep-alive connection return to the pool; bodies larger
// than the cap are abandoned and the connection is closed instead.
const maxDrainBytes = 64 * 1024

var drainBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 32*1024)
		return &b
	},
}

// drainAndCloseBody empties and closes a response body so the underlying
// connection can be reused. A nil body is a no-op.
func drainAndCloseBody(body io.ReadCloser) {
	if body == nil {
		return
	}
	defer body.Close()

	bufPtr := drainBufPool.Get().(*[]byte)
	defer drainBufPool.Put(bufPtr)

	_, _ = io.CopyBuffer(io.Discard, io.LimitReader(body, maxDrainBytes), *bufPtr)
}
