// Package service defines the lifecycle contract shared by the long-running
// services (API server, scheduler).
package service

import (
	"context"
	"sync"
)

// Service is a long-running component started at boot and stopped through
// context cancellation. Start returns immediately; the implementation calls
// serviceStopWG.Done once it has fully shut down.
type Service interface {
	Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error
}
