package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
	"github.com/custodia-labs/newsreel-cli/internal/core/ports/driven"
)

// --- Mock implementations shared by the service tests ---

// mockArticleStore implements driven.ArticleStore in memory.
type mockArticleStore struct {
	mu        sync.Mutex
	articles  map[string]*domain.Article // by ID
	byLocator map[string]string          // locator -> ID
	formats   map[string][]byte          // articleID/field -> blob

	processedErr error
	persistErr   error
	unreadErr    error

	persistCalls   int
	setFormatCalls int
	clearCalls     int
}

func newMockArticleStore() *mockArticleStore {
	return &mockArticleStore{
		articles:  make(map[string]*domain.Article),
		byLocator: make(map[string]string),
		formats:   make(map[string][]byte),
	}
}

func formatMapKey(articleID string, field domain.Field) string {
	return articleID + "/" + string(field)
}

func (m *mockArticleStore) IsAlreadyProcessed(_ context.Context, locator string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processedErr != nil {
		return false, m.processedErr
	}
	_, exists := m.byLocator[locator]
	return exists, nil
}

func (m *mockArticleStore) Persist(_ context.Context, article *domain.Article) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistCalls++
	if m.persistErr != nil {
		return false, m.persistErr
	}
	if id, exists := m.byLocator[article.Locator]; exists {
		existing := m.articles[id]
		updated := *article
		updated.ID = id
		updated.Read = existing.Read
		updated.Bookmarked = existing.Bookmarked
		m.articles[id] = &updated
		return false, nil
	}
	saved := *article
	m.articles[article.ID] = &saved
	m.byLocator[article.Locator] = article.ID
	return true, nil
}

func (m *mockArticleStore) Get(_ context.Context, id string) (*domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	article, exists := m.articles[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	copied := *article
	return &copied, nil
}

func (m *mockArticleStore) GetByLocator(_ context.Context, locator string) (*domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, exists := m.byLocator[locator]
	if !exists {
		return nil, domain.ErrNotFound
	}
	copied := *m.articles[id]
	return &copied, nil
}

func (m *mockArticleStore) RecentLocators(_ context.Context, _ time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	locators := make([]string, 0, len(m.byLocator))
	for locator := range m.byLocator {
		if len(locators) >= limit {
			break
		}
		locators = append(locators, locator)
	}
	return locators, nil
}

func (m *mockArticleStore) SetFieldFormat(_ context.Context, articleID string, field domain.Field, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setFormatCalls++
	m.formats[formatMapKey(articleID, field)] = blob
	return nil
}

func (m *mockArticleStore) GetFieldFormat(_ context.Context, articleID string, field domain.Field) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, exists := m.formats[formatMapKey(articleID, field)]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return blob, nil
}

func (m *mockArticleStore) ClearFieldFormat(_ context.Context, articleID string, field domain.Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	delete(m.formats, formatMapKey(articleID, field))
	return nil
}

func (m *mockArticleStore) UnreadCount(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unreadErr != nil {
		return 0, m.unreadErr
	}
	count := 0
	for _, article := range m.articles {
		if !article.Read {
			count++
		}
	}
	return count, nil
}

func (m *mockArticleStore) MarkRead(_ context.Context, id string, read bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	article, exists := m.articles[id]
	if !exists {
		return domain.ErrNotFound
	}
	article.Read = read
	return nil
}

func (m *mockArticleStore) SetBookmarked(_ context.Context, id string, bookmarked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	article, exists := m.articles[id]
	if !exists {
		return domain.ErrNotFound
	}
	article.Bookmarked = bookmarked
	return nil
}

func (m *mockArticleStore) articleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.articles)
}

// mockRemote implements driven.RemoteClient.
type mockRemote struct {
	mu sync.Mutex

	delta     []string
	deltaErrs []error // popped one per SyncDelta call before delta is returned

	// blockDelta, when set, makes SyncDelta wait until it is closed.
	blockDelta chan struct{}

	remoteArticles map[string]*domain.Article
	fetchErrs      map[string][]error // popped one per FetchArticle call

	reachable bool

	deltaCalls int
	fetchCalls map[string]int
}

func newMockRemote() *mockRemote {
	return &mockRemote{
		remoteArticles: make(map[string]*domain.Article),
		fetchErrs:      make(map[string][]error),
		fetchCalls:     make(map[string]int),
		reachable:      true,
	}
}

func (m *mockRemote) addArticle(locator string) {
	m.remoteArticles[locator] = &domain.Article{
		ID:      "id-" + locator,
		Locator: locator,
		Title:   "Title " + locator,
		Body:    "Body of " + locator,
	}
}

func (m *mockRemote) Authenticate(_ context.Context) error { return nil }

func (m *mockRemote) SyncDelta(ctx context.Context, _ []string) ([]string, error) {
	m.mu.Lock()
	block := m.blockDelta
	m.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.deltaCalls++
	if len(m.deltaErrs) > 0 {
		err := m.deltaErrs[0]
		m.deltaErrs = m.deltaErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return m.delta, nil
}

func (m *mockRemote) FetchArticle(_ context.Context, locator string, _ bool) (*domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls[locator]++
	if errs := m.fetchErrs[locator]; len(errs) > 0 {
		err := errs[0]
		m.fetchErrs[locator] = errs[1:]
		if err != nil {
			return nil, err
		}
	}
	article, exists := m.remoteArticles[locator]
	if !exists {
		return nil, nil // best-effort miss
	}
	copied := *article
	return &copied, nil
}

func (m *mockRemote) IsReachable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reachable
}

func (m *mockRemote) setReachable(reachable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reachable = reachable
}

// mockSchedulerStore implements driven.SchedulerStore in memory.
type mockSchedulerStore struct {
	mu      sync.RWMutex
	tasks   map[string]*domain.ScheduledTask
	results map[string][]domain.TaskResult
	saveErr error
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{
		tasks:   make(map[string]*domain.ScheduledTask),
		results: make(map[string][]domain.TaskResult),
	}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, exists := m.tasks[taskID]
	if !exists {
		return nil, nil
	}
	taskCopy := *task
	return &taskCopy, nil
}

func (m *mockSchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := make([]domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if task == nil {
		return domain.ErrInvalidInput
	}
	taskCopy := *task
	m.tasks[task.ID] = &taskCopy
	return nil
}

func (m *mockSchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if result == nil {
		return domain.ErrInvalidInput
	}
	m.results[result.TaskID] = append(m.results[result.TaskID], *result)
	return nil
}

func (m *mockSchedulerStore) GetTaskHistory(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := m.results[taskID]
	if len(results) > limit {
		results = results[len(results)-limit:]
	}
	return results, nil
}

func (m *mockSchedulerStore) PruneHistory(_ context.Context, _ int) error {
	return nil
}

func (m *mockSchedulerStore) resultsFor(taskID string) []domain.TaskResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]domain.TaskResult, len(m.results[taskID]))
	copy(results, m.results[taskID])
	return results
}

func (m *mockSchedulerStore) taskFor(taskID string) *domain.ScheduledTask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, exists := m.tasks[taskID]
	if !exists {
		return nil
	}
	taskCopy := *task
	return &taskCopy
}

// mockFormatter implements driven.Formatter with a pluggable format func.
type mockFormatter struct {
	mu          sync.Mutex
	formatFn    func(ctx context.Context, raw string) (*domain.FormattedText, error)
	formatCalls int
	plainCalls  int
}

func (m *mockFormatter) Format(ctx context.Context, raw string) (*domain.FormattedText, error) {
	m.mu.Lock()
	m.formatCalls++
	fn := m.formatFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, raw)
	}
	return &domain.FormattedText{HTML: "<p>" + raw + "</p>", Plain: raw}, nil
}

func (m *mockFormatter) Plain(raw string) *domain.FormattedText {
	m.mu.Lock()
	m.plainCalls++
	m.mu.Unlock()
	return &domain.FormattedText{Plain: raw, Degraded: true}
}

func (m *mockFormatter) calls() (format, plain int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.formatCalls, m.plainCalls
}

// mockPower implements driven.PowerMonitor.
type mockPower struct {
	external bool
}

func (m *mockPower) OnExternalPower() bool { return m.external }

// mockBadge implements driven.BadgeSink.
type mockBadge struct {
	mu     sync.Mutex
	counts []int
}

func (m *mockBadge) UpdateBadge(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = append(m.counts, count)
}

func (m *mockBadge) last() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.counts) == 0 {
		return 0, false
	}
	return m.counts[len(m.counts)-1], true
}

// Ensure mocks implement interfaces
var _ driven.ArticleStore = (*mockArticleStore)(nil)
var _ driven.RemoteClient = (*mockRemote)(nil)
var _ driven.SchedulerStore = (*mockSchedulerStore)(nil)
var _ driven.Formatter = (*mockFormatter)(nil)
var _ driven.PowerMonitor = (*mockPower)(nil)
var _ driven.BadgeSink = (*mockBadge)(nil)

// instantSleep makes retry backoff and pacing immediate in tests.
func instantSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// seedArticles persists n articles into the store.
func seedArticles(store *mockArticleStore, n int) {
	for i := 0; i < n; i++ {
		locator := fmt.Sprintf("/2025/article-%03d.json", i)
		_, _ = store.Persist(context.Background(), &domain.Article{
			ID:      fmt.Sprintf("seed-%03d", i),
			Locator: locator,
			Title:   fmt.Sprintf("Seed %d", i),
		})
	}
}
