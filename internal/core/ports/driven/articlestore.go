package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
)

// ArticleStore persists articles and their cached formatted content.
// Writes are serialized by the implementation (single-writer discipline);
// concurrent readers are permitted.
type ArticleStore interface {
	// IsAlreadyProcessed reports whether an article with this locator is
	// already persisted. The dedup queue consults it before admission.
	IsAlreadyProcessed(ctx context.Context, locator string) (bool, error)

	// Persist saves an article. If a record with the same locator already
	// exists, content fields are refreshed, user state and cached formats
	// are preserved, and created is false. A locator can never end up
	// with two records.
	Persist(ctx context.Context, article *domain.Article) (created bool, err error)

	// Get retrieves an article by surrogate ID.
	Get(ctx context.Context, id string) (*domain.Article, error)

	// GetByLocator retrieves an article by its remote locator.
	GetByLocator(ctx context.Context, locator string) (*domain.Article, error)

	// RecentLocators returns locators of articles published since the
	// given time, most recent first, capped at limit.
	RecentLocators(ctx context.Context, since time.Time, limit int) ([]string, error)

	// SetFieldFormat atomically stores the cached format blob for one
	// (article, field) pair, replacing any previous blob.
	SetFieldFormat(ctx context.Context, articleID string, field domain.Field, blob []byte) error

	// GetFieldFormat loads the cached format blob for one (article,
	// field) pair. Returns domain.ErrNotFound when absent.
	GetFieldFormat(ctx context.Context, articleID string, field domain.Field) ([]byte, error)

	// ClearFieldFormat removes a cached format blob. Used to invalidate
	// corrupt blobs before regeneration.
	ClearFieldFormat(ctx context.Context, articleID string, field domain.Field) error

	// UnreadCount returns the number of unread articles.
	UnreadCount(ctx context.Context) (int, error)

	// MarkRead updates the read flag of an article.
	MarkRead(ctx context.Context, id string, read bool) error

	// SetBookmarked updates the bookmark flag of an article.
	SetBookmarked(ctx context.Context, id string, bookmarked bool) error
}
