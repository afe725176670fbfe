// Package listener delivers change notifications from the remote store.
//
// Notifications are level-triggered: a handler call means "something may have
// changed", and the payload (a table name when known) is informational.
package listener

import "context"

// Handler is called once per received notification.
type Handler func(table string)

// Unsubscribe stops delivery and releases the subscription. It is safe to
// call more than once.
type Unsubscribe func()

// Listener subscribes to change notifications.
type Listener interface {
	Subscribe(ctx context.Context, onChange Handler) (Unsubscribe, error)
}

// Publisher announces a change on table.
type Publisher interface {
	Publish(ctx context.Context, table string) error
}
