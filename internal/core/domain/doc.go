// Package domain defines the core business entities for the Newsreel
// sync engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies beyond uuid and defines the
// fundamental types:
//
//   - Article: a persisted news article keyed by its remote locator
//   - Field: an article narrative field that can carry formatted content
//   - FormattedText and the CachedFormat envelope
//   - PendingWorkItem: a queued fetch request
//   - SyncCycleState and ScheduledTask: sync progress and cadence state
//   - Error taxonomy shared by the remote client and the retry layer
package domain
