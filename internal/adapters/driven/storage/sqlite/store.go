// Package sqlite provides the SQLite-backed persistence layer.
//
// A single database file holds articles, their cached format blobs and
// scheduler state. Access goes through wrapper types satisfying the
// driven store ports.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/newsreel-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
	"github.com/custodia-labs/newsreel-cli/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to the
// article and scheduler store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.newsreel/data/newsreel.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".newsreel", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "newsreel.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ArticleStore returns an ArticleStore interface backed by this store.
func (s *Store) ArticleStore() driven.ArticleStore {
	return &articleStore{store: s}
}

// SchedulerStore returns a SchedulerStore interface backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Article Store ====================

// articleStore implements driven.ArticleStore.
type articleStore struct {
	store *Store
}

var _ driven.ArticleStore = (*articleStore)(nil)

const articleColumns = `id, locator, title, topic, published_at,
	body, summary, critical_analysis, source_analysis,
	read, bookmarked, created_at, updated_at`

// IsAlreadyProcessed reports whether an article with this locator is
// already persisted.
func (s *articleStore) IsAlreadyProcessed(ctx context.Context, locator string) (bool, error) {
	var one int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT 1 FROM articles WHERE locator = ?", locator).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking locator: %w", err)
	}
	return true, nil
}

// Persist saves an article. A record that already exists for the
// locator has its content refreshed; read/bookmark state and cached
// formats are untouched. The locator UNIQUE constraint guarantees a
// single record per locator even across concurrent writers.
func (s *articleStore) Persist(ctx context.Context, article *domain.Article) (bool, error) {
	if article == nil {
		return false, domain.ErrInvalidInput
	}
	if err := article.Validate(); err != nil {
		return false, err
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var existingID string
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM articles WHERE locator = ?", article.Locator).Scan(&existingID)

	now := time.Now().UTC()
	created := false

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if article.CreatedAt.IsZero() {
			article.CreatedAt = now
		}
		article.UpdatedAt = now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO articles (id, locator, title, topic, published_at,
				body, summary, critical_analysis, source_analysis,
				read, bookmarked, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, article.ID, article.Locator, article.Title, article.Topic,
			formatNullableTime(article.PublishedAt),
			article.Body, article.Summary, article.CriticalAnalysis, article.SourceAnalysis,
			boolToInt(article.Read), boolToInt(article.Bookmarked),
			article.CreatedAt, article.UpdatedAt)
		if err != nil {
			return false, fmt.Errorf("inserting article: %w", err)
		}
		created = true

	case err != nil:
		return false, fmt.Errorf("looking up article by locator: %w", err)

	default:
		article.ID = existingID
		article.UpdatedAt = now
		_, err = tx.ExecContext(ctx, `
			UPDATE articles SET
				title = ?, topic = ?, published_at = ?,
				body = ?, summary = ?, critical_analysis = ?, source_analysis = ?,
				updated_at = ?
			WHERE id = ?
		`, article.Title, article.Topic, formatNullableTime(article.PublishedAt),
			article.Body, article.Summary, article.CriticalAnalysis, article.SourceAnalysis,
			article.UpdatedAt, existingID)
		if err != nil {
			return false, fmt.Errorf("updating article: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing article: %w", err)
	}
	return created, nil
}

// Get retrieves an article by surrogate ID.
func (s *articleStore) Get(ctx context.Context, id string) (*domain.Article, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+articleColumns+" FROM articles WHERE id = ?", id)
	return scanArticle(row)
}

// GetByLocator retrieves an article by its remote locator.
func (s *articleStore) GetByLocator(ctx context.Context, locator string) (*domain.Article, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+articleColumns+" FROM articles WHERE locator = ?", locator)
	return scanArticle(row)
}

// RecentLocators returns locators published since the given time, most
// recent first, capped at limit.
func (s *articleStore) RecentLocators(ctx context.Context, since time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT locator FROM articles
		WHERE published_at IS NULL OR published_at >= ?
		ORDER BY published_at DESC, created_at DESC
		LIMIT ?
	`, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent locators: %w", err)
	}
	defer rows.Close()

	var locators []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var locator string
		if err := rows.Scan(&locator); err != nil {
			return nil, fmt.Errorf("scanning locator: %w", err)
		}
		locators = append(locators, locator)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating locators: %w", err)
	}
	return locators, nil
}

// SetFieldFormat atomically stores the cached format blob for one
// (article, field) pair, replacing any previous blob.
func (s *articleStore) SetFieldFormat(ctx context.Context, articleID string, field domain.Field, blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("%w: empty format blob", domain.ErrInvalidInput)
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO article_formats (article_id, field, blob, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(article_id, field) DO UPDATE SET
			blob = excluded.blob,
			updated_at = excluded.updated_at
	`, articleID, field.String(), blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving format blob: %w", err)
	}
	return nil
}

// GetFieldFormat loads the cached format blob for one (article, field)
// pair. Returns domain.ErrNotFound when absent.
func (s *articleStore) GetFieldFormat(ctx context.Context, articleID string, field domain.Field) ([]byte, error) {
	var blob []byte
	err := s.store.db.QueryRowContext(ctx, `
		SELECT blob FROM article_formats WHERE article_id = ? AND field = ?
	`, articleID, field.String()).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading format blob: %w", err)
	}
	return blob, nil
}

// ClearFieldFormat removes a cached format blob.
func (s *articleStore) ClearFieldFormat(ctx context.Context, articleID string, field domain.Field) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM article_formats WHERE article_id = ? AND field = ?",
		articleID, field.String())
	if err != nil {
		return fmt.Errorf("clearing format blob: %w", err)
	}
	return nil
}

// UnreadCount returns the number of unread articles.
func (s *articleStore) UnreadCount(ctx context.Context) (int, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM articles WHERE read = 0").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread articles: %w", err)
	}
	return count, nil
}

// MarkRead updates the read flag of an article.
func (s *articleStore) MarkRead(ctx context.Context, id string, read bool) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE articles SET read = ? WHERE id = ?", boolToInt(read), id)
	if err != nil {
		return fmt.Errorf("marking article read: %w", err)
	}
	return requireRow(res)
}

// SetBookmarked updates the bookmark flag of an article.
func (s *articleStore) SetBookmarked(ctx context.Context, id string, bookmarked bool) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE articles SET bookmarked = ? WHERE id = ?", boolToInt(bookmarked), id)
	if err != nil {
		return fmt.Errorf("bookmarking article: %w", err)
	}
	return requireRow(res)
}

// ==================== Helper Functions ====================

// scanArticle scans a single article row.
func scanArticle(row *sql.Row) (*domain.Article, error) {
	var a domain.Article
	var publishedAt sql.NullTime
	var read, bookmarked int

	err := row.Scan(&a.ID, &a.Locator, &a.Title, &a.Topic, &publishedAt,
		&a.Body, &a.Summary, &a.CriticalAnalysis, &a.SourceAnalysis,
		&read, &bookmarked, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning article: %w", err)
	}

	if publishedAt.Valid {
		a.PublishedAt = publishedAt.Time
	}
	a.Read = read == 1
	a.Bookmarked = bookmarked == 1
	return &a, nil
}

// requireRow maps an update that touched no rows to ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
