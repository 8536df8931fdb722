// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - ArticleStore: article and cached-format persistence
//   - RemoteClient: the news API (authenticate, delta sync, fetch)
//   - Formatter: renders raw field text into FormattedText
//   - SchedulerStore: cadence state persistence for crash recovery
//
// # Optional Interfaces
//
//   - PowerMonitor: external-power predicate; nil means always-on power
//   - BadgeSink: unread-count callback; nil disables badge updates
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: any adapter package
package driven
