package domain

import "time"

// PendingWorkItem is a queued request to fetch one article resource.
// At most one item per locator may exist in the queue at any time.
type PendingWorkItem struct {
	// Locator is the remote resource key, also the dedup key.
	Locator string

	// EnqueuedAt is when the item was admitted. Drain order is FIFO by
	// this timestamp, and items older than the queue max-age are
	// silently dropped instead of processed.
	EnqueuedAt time.Time

	// CorrelationID optionally links the item to the push notification
	// that announced it. Empty for delta-sync items.
	CorrelationID string
}

// Expired reports whether the item is older than maxAge at the given time.
func (i PendingWorkItem) Expired(now time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && now.Sub(i.EnqueuedAt) > maxAge
}
