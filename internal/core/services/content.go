package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
	"github.com/custodia-labs/newsreel-cli/internal/core/ports/driven"
	"github.com/custodia-labs/newsreel-cli/internal/core/ports/driving"
	"github.com/custodia-labs/newsreel-cli/internal/logger"
)

// Ensure ContentService implements the interface.
var _ driving.ContentProvider = (*ContentService)(nil)

// placeholderText is the terminal representation for a field with no raw
// text at all.
const placeholderText = "Unable to load content."

// ContentService materialises formatted article field content lazily.
//
// Retrieval is a three-phase state machine per (article, field):
// cached blob, bounded regeneration, plain-text degrade. A corrupt blob
// is invalidated eagerly and regenerated; corruption never surfaces to
// the caller as an error.
//
// Generations for the same (article, field) are shared between
// concurrent callers, and a generation always runs to completion once
// started, even if every interested caller departs. Warming the cache
// wins over saving the CPU.
type ContentService struct {
	cfg       domain.ContentConfig
	store     driven.ArticleStore
	formatter driven.Formatter

	mu       sync.Mutex
	inflight map[formatKey]*generation

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

type formatKey struct {
	articleID string
	field     domain.Field
}

// generation is one shared in-flight formatting task.
type generation struct {
	done   chan struct{}
	result *domain.FormattedText
	err    error
}

// NewContentService creates a content service.
func NewContentService(cfg domain.ContentConfig, store driven.ArticleStore, formatter driven.Formatter) *ContentService {
	return &ContentService{
		cfg:       cfg,
		store:     store,
		formatter: formatter,
		inflight:  make(map[formatKey]*generation),
		sleep:     sleepCtx,
	}
}

// FormattedContent returns the formatted representation of one article
// field.
func (c *ContentService) FormattedContent(ctx context.Context, articleID string, field domain.Field) (*domain.FormattedText, error) {
	article, err := c.store.Get(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("load article: %w", err)
	}

	// Phase 1: cached blob fast path.
	if ft := c.fromCache(ctx, articleID, field); ft != nil {
		return ft, nil
	}

	raw := article.FieldText(field)
	if raw == "" {
		// Nothing to generate from and nothing to degrade to.
		return &domain.FormattedText{Plain: placeholderText, Placeholder: true}, nil
	}

	// Phase 2: regenerate, deduplicated across concurrent callers.
	ft, genErr := c.awaitGeneration(ctx, articleID, field, raw)
	if genErr == nil {
		return ft, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Phase 3: degrade to an unstyled wrapper of the raw text. Never
	// cached, so the next request tries the real thing again.
	logger.Debug("content: %s/%s degraded to plain text: %v", articleID, field, genErr)
	return c.formatter.Plain(raw), nil
}

// fromCache loads and decodes the persisted blob. A blob that fails to
// decode is nulled out immediately so the record never retains garbage.
func (c *ContentService) fromCache(ctx context.Context, articleID string, field domain.Field) *domain.FormattedText {
	blob, err := c.store.GetFieldFormat(ctx, articleID, field)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("content: load format %s/%s: %v", articleID, field, err)
		}
		return nil
	}

	ft, err := domain.DecodeFormat(blob)
	if err == nil {
		return ft
	}

	logger.Warn("content: invalidating corrupt format %s/%s: %v", articleID, field, err)
	if clearErr := c.store.ClearFieldFormat(ctx, articleID, field); clearErr != nil {
		logger.Warn("content: clear format %s/%s: %v", articleID, field, clearErr)
	}
	return nil
}

// awaitGeneration joins or starts the shared generation for a key and
// waits for it or for the caller's own cancellation. Ownership of the
// task is shared: a departing caller leaves the generation running for
// whoever else awaits it, and for the cache.
func (c *ContentService) awaitGeneration(ctx context.Context, articleID string, field domain.Field, raw string) (*domain.FormattedText, error) {
	key := formatKey{articleID: articleID, field: field}

	c.mu.Lock()
	gen, exists := c.inflight[key]
	if !exists {
		gen = &generation{done: make(chan struct{})}
		c.inflight[key] = gen
		go c.generate(ctx, key, raw, gen)
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-gen.done:
		return gen.result, gen.err
	}
}

// generate runs the formatter with a bounded timeout, retrying exactly
// once after a short delay, then persists the result best-effort.
// Detached from the initiating caller's cancellation.
func (c *ContentService) generate(callerCtx context.Context, key formatKey, raw string, gen *generation) {
	ctx := context.WithoutCancel(callerCtx)

	defer func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
		close(gen.done)
	}()

	ft, err := c.formatOnce(ctx, raw)
	if errors.Is(err, context.DeadlineExceeded) {
		if sleepErr := c.sleep(ctx, c.cfg.RetryDelay); sleepErr != nil {
			gen.err = sleepErr
			return
		}
		ft, err = c.formatOnce(ctx, raw)
	}
	if err != nil {
		gen.err = err
		return
	}

	// Persist best-effort: availability to the caller beats durability.
	blob, err := domain.EncodeFormat(ft)
	if err != nil {
		logger.Warn("content: encode format %s/%s: %v", key.articleID, key.field, err)
	} else if saveErr := c.store.SetFieldFormat(ctx, key.articleID, key.field, blob); saveErr != nil {
		logger.Warn("content: save format %s/%s: %v", key.articleID, key.field, saveErr)
	}

	gen.result = ft
}

// formatOnce runs one bounded formatting attempt.
func (c *ContentService) formatOnce(ctx context.Context, raw string) (*domain.FormattedText, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.GenerationTimeout)
	defer cancel()
	return c.formatter.Format(attemptCtx, raw)
}
