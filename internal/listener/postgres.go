package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresListener uses LISTEN/NOTIFY. The remote schema installs triggers
// that notify the channel with the changed table name.
type PostgresListener struct {
	dsn          string
	channel      string
	logger       *zap.Logger
	pingInterval time.Duration
}

// NewPostgresListener creates a listener for channel on the database at dsn.
func NewPostgresListener(dsn, channel string, logger *zap.Logger) *PostgresListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresListener{
		dsn:          dsn,
		channel:      channel,
		logger:       logger,
		pingInterval: 90 * time.Second,
	}
}

var _ Listener = (*PostgresListener)(nil)

// Subscribe starts listening. After a reconnect the handler is called with
// an empty table, since notifications sent while disconnected are lost.
func (l *PostgresListener) Subscribe(ctx context.Context, onChange Handler) (Unsubscribe, error) {
	ln := pq.NewListener(l.dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.logger.Info("Change listener connected", zap.String("channel", l.channel))
		case pq.ListenerEventDisconnected:
			l.logger.Warn("Change listener disconnected", zap.Error(err))
		case pq.ListenerEventReconnected:
			l.logger.Info("Change listener reconnected", zap.String("channel", l.channel))
		case pq.ListenerEventConnectionAttemptFailed:
			l.logger.Warn("Change listener connection attempt failed", zap.Error(err))
		}
	})
	if err := ln.Listen(l.channel); err != nil {
		ln.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", l.channel, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-ln.Notify:
				if n == nil {
					onChange("")
					continue
				}
				l.logger.Debug("Change notification", zap.String("table", n.Extra))
				onChange(n.Extra)
			case <-ticker.C:
				go func() {
					if err := ln.Ping(); err != nil {
						l.logger.Debug("Change listener ping failed", zap.Error(err))
					}
				}()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			if err := ln.Close(); err != nil {
				l.logger.Warn("Failed to close change listener", zap.Error(err))
			}
		})
	}, nil
}
