package platform

import (
	"sync/atomic"

	"github.com/custodia-labs/newsreel-cli/internal/core/ports/driven"
	"github.com/custodia-labs/newsreel-cli/internal/logger"
)

// Ensure BadgeSink implements the interface.
var _ driven.BadgeSink = (*BadgeSink)(nil)

// BadgeSink records the latest unread count. There is no app icon on a
// headless host, so the count is kept for the status command and logged
// on change.
type BadgeSink struct {
	count atomic.Int64
}

// NewBadgeSink creates a badge sink.
func NewBadgeSink() *BadgeSink {
	return &BadgeSink{}
}

// UpdateBadge stores the unread count. Never blocks.
func (b *BadgeSink) UpdateBadge(count int) {
	previous := b.count.Swap(int64(count))
	if previous != int64(count) {
		logger.Debug("badge: unread count %d", count)
	}
}

// Count returns the last recorded unread count.
func (b *BadgeSink) Count() int {
	return int(b.count.Load())
}
