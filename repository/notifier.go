package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/lib/pq"
)

const (
	minReconnectInterval = 5 * time.Second
	maxReconnectInterval = 30 * time.Second
	eventsChannel        = "federation_events"
)

// Listener wraps listener for notifications about appended journal events.
type Listener struct {
	inner *pq.Listener
}

// Listen creates Listener for journal notifications from database.
func Listen(cfg DBConfig, report func(ev pq.ListenerEventType, err error)) (Listener, error) {
	listener := pq.NewListener(cfg.dsn(), minReconnectInterval, maxReconnectInterval, report)
	if err := listener.Listen(eventsChannel); err != nil {
		listener.Close()
		return Listener{}, errors.Join(ErrListenFailed, err)
	}
	return Listener{inner: listener}, nil
}

// SubscribeAppended sends the journal row id of every appended event to the channel.
// Subscription stops when ctx is done.
func (l Listener) SubscribeAppended(ctx context.Context, c chan<- int64) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-l.inner.Notify:
				if !ok {
					return
				}
				if n == nil {
					continue
				}
				id, err := strconv.ParseInt(n.Extra, 10, 64)
				if err != nil {
					continue
				}
				select {
				case c <- id:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

// Close closes the listener.
func (l Listener) Close() error {
	return l.inner.Close()
}
