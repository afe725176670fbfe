package listener

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PollingListener fires on a fixed interval. Used when the remote store
// cannot push notifications.
type PollingListener struct {
	interval time.Duration
	logger   *zap.Logger
}

// NewPollingListener creates a listener firing every interval.
func NewPollingListener(interval time.Duration, logger *zap.Logger) *PollingListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &PollingListener{interval: interval, logger: logger}
}

var _ Listener = (*PollingListener)(nil)

// Subscribe starts the ticker.
func (l *PollingListener) Subscribe(ctx context.Context, onChange Handler) (Unsubscribe, error) {
	l.logger.Info("Starting polling mode", zap.Duration("interval", l.interval))

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				onChange("")
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}
