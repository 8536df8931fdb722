package domain

import (
	"fmt"
	"time"
)

// Article represents a persisted news article.
// It is the canonical local representation of a remote article resource.
type Article struct {
	// ID is the surrogate key (UUID string).
	ID string

	// Locator is the stable remote resource key (URL path). It is the
	// deduplication key: at most one persisted Article per locator.
	Locator string

	// Title is the human-readable headline.
	Title string

	// Topic is the subscription topic label the article belongs to.
	Topic string

	// PublishedAt is the remote publish timestamp.
	PublishedAt time.Time

	// Narrative fields. All optional; empty means the server did not
	// provide that field.
	Body             string
	Summary          string
	CriticalAnalysis string
	SourceAnalysis   string

	// User state. Never touched by the sync pipeline after creation.
	Read       bool
	Bookmarked bool

	// CreatedAt is when the record was first persisted.
	CreatedAt time.Time

	// UpdatedAt is when the record content was last refreshed.
	UpdatedAt time.Time
}

// Validate checks the invariants required before persisting.
func (a *Article) Validate() error {
	if a.Locator == "" {
		return fmt.Errorf("%w: article locator is empty", ErrInvalidInput)
	}
	if a.ID == "" {
		return fmt.Errorf("%w: article ID is empty", ErrInvalidInput)
	}
	return nil
}

// FieldText returns the raw text of a narrative field.
func (a *Article) FieldText(field Field) string {
	switch field {
	case FieldBody:
		return a.Body
	case FieldSummary:
		return a.Summary
	case FieldCriticalAnalysis:
		return a.CriticalAnalysis
	case FieldSourceAnalysis:
		return a.SourceAnalysis
	default:
		return ""
	}
}

// Field identifies an article narrative field that can carry a cached
// formatted representation.
type Field string

// Narrative fields with formatted representations.
const (
	FieldBody             Field = "body"
	FieldSummary          Field = "summary"
	FieldCriticalAnalysis Field = "critical_analysis"
	FieldSourceAnalysis   Field = "source_analysis"
)

// Fields lists all cacheable fields in a stable order.
func Fields() []Field {
	return []Field{FieldBody, FieldSummary, FieldCriticalAnalysis, FieldSourceAnalysis}
}

// ParseField converts a string to a Field.
func ParseField(s string) (Field, error) {
	f := Field(s)
	switch f {
	case FieldBody, FieldSummary, FieldCriticalAnalysis, FieldSourceAnalysis:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown field %q", ErrInvalidInput, s)
}

func (f Field) String() string { return string(f) }
