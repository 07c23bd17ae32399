package service

import (
	"context"
	"time"
)

// EventPublisher pushes market events to connected clients. Implemented by
// the websocket hub; services treat it as optional.
type EventPublisher interface {
	Publish(event string, payload any)
}

// Locker is an advisory distributed lock used to serialize admin settlement
// calls per market before they contend on the database row lock. Acquire
// returns an unlock func, or an error when the lock is already held.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SnapshotCache invalidates cached market snapshots after writes.
type SnapshotCache interface {
	Invalidate(ctx context.Context, marketID string)
}
