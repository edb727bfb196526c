package intake

import (
	"context"
	"time"
)

// Forwarder registers a subscriber with the subscription backend. It never
// returns an error; failures are folded into the outcome.
type Forwarder interface {
	Forward(ctx context.Context, sub Subscriber) ForwardOutcome
}

// BackupStore keeps the secondary record of accepted subscribers. Backup must
// look the email up first and report AlreadyPresent instead of inserting twice.
type BackupStore interface {
	Backup(ctx context.Context, record BackupRecord) (BackupReceipt, error)
	Count(ctx context.Context) (int64, error)
	Close()
}

// Notifier delivers operational events. Implementations swallow and log their
// own failures.
type Notifier interface {
	Notify(ctx context.Context, evt NotificationEvent)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces request IDs.
type IDGenerator interface {
	NewID() (string, error)
}
