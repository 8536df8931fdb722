package driven

import (
	"context"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
)

// RemoteClient talks to the news API.
//
// All operations share one auth-retry rule: on a 401 the client
// transparently re-authenticates once and replays the request; a second
// failure surfaces domain.ErrAuthRequired.
type RemoteClient interface {
	// Authenticate exchanges the device credential for a bearer token
	// and caches it for subsequent calls.
	Authenticate(ctx context.Context) error

	// SyncDelta sends the caller's known locators (already capped by the
	// caller) and returns the locators the caller does not yet have.
	// A 404 on the delta endpoint degrades to an empty result.
	SyncDelta(ctx context.Context, seen []string) ([]string, error)

	// FetchArticle fetches and decodes one article resource. In
	// best-effort mode a 404 yields (nil, nil); in strict mode it yields
	// domain.ErrArticleNotFound.
	FetchArticle(ctx context.Context, locator string, bestEffort bool) (*domain.Article, error)

	// IsReachable is a non-blocking reachability query backed by the
	// path monitor. The scheduler uses it to skip cycles rather than
	// fail them.
	IsReachable() bool
}

// Formatter renders raw article field text.
type Formatter interface {
	// Format renders markdown source into a styled representation.
	// It honours ctx cancellation; generation is expensive.
	Format(ctx context.Context, raw string) (*domain.FormattedText, error)

	// Plain wraps raw text in an unstyled representation. Used as the
	// degraded fallback when generation fails; never cached.
	Plain(raw string) *domain.FormattedText
}

// PowerMonitor reports the device power source.
type PowerMonitor interface {
	// OnExternalPower reports whether the device is plugged in.
	OnExternalPower() bool
}

// BadgeSink receives the unread count at the end of a successful cycle.
// Fire-and-forget: implementations must not block and failures must not
// fail the cycle.
type BadgeSink interface {
	UpdateBadge(count int)
}
