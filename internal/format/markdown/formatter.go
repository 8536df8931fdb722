// Package markdown renders article narrative fields.
//
// Narrative fields arrive from the server as markdown. Format produces
// the styled HTML representation that is persisted as a CachedFormat
// blob; Plain produces the unstyled degrade used when generation fails.
package markdown

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
	"github.com/custodia-labs/newsreel-cli/internal/core/ports/driven"
)

// Ensure Formatter implements the interface.
var _ driven.Formatter = (*Formatter)(nil)

// Formatter renders markdown into FormattedText.
// Rendering is deterministic: the same source always yields the same
// bytes, so persisted blobs round-trip exactly.
type Formatter struct {
	md goldmark.Markdown
}

// New creates a markdown formatter.
func New() *Formatter {
	return &Formatter{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
	}
}

// Format renders markdown source into styled HTML plus extracted plain
// text. The render itself is synchronous; ctx is checked before and
// after so a caller-imposed generation timeout is honoured.
func (f *Formatter) Format(ctx context.Context, raw string) (*domain.FormattedText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.md.Convert([]byte(raw), &buf); err != nil {
		return nil, &domain.DecodeError{Detail: err.Error()}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &domain.FormattedText{
		HTML:  buf.String(),
		Plain: stripMarkdown(raw),
	}, nil
}

// Plain wraps raw text in an unstyled representation. It is the
// degraded fallback and is never persisted.
func (f *Formatter) Plain(raw string) *domain.FormattedText {
	return &domain.FormattedText{
		Plain:    stripMarkdown(raw),
		Degraded: true,
	}
}

var (
	codeBlockRe    = regexp.MustCompile("(?s)```[^`]*```")
	inlineCodeRe   = regexp.MustCompile("`[^`]+`")
	imageRe        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	linkRe         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headingRe      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	blockquoteRe   = regexp.MustCompile(`(?m)^>\s*`)
	hrRe           = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	listMarkerRe   = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedListRe = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
)

// stripMarkdown removes common markdown formatting for plain text
// content. This is a simplified implementation that handles common cases.
func stripMarkdown(content string) string {
	content = codeBlockRe.ReplaceAllString(content, "")
	content = inlineCodeRe.ReplaceAllString(content, "")
	content = imageRe.ReplaceAllString(content, "")
	content = linkRe.ReplaceAllString(content, "$1")
	content = headingRe.ReplaceAllString(content, "")

	content = strings.ReplaceAll(content, "**", "")
	content = strings.ReplaceAll(content, "__", "")
	content = strings.ReplaceAll(content, "*", "")
	content = strings.ReplaceAll(content, "_", " ")

	content = blockquoteRe.ReplaceAllString(content, "")
	content = hrRe.ReplaceAllString(content, "")
	content = listMarkerRe.ReplaceAllString(content, "")
	content = numberedListRe.ReplaceAllString(content, "")
	content = multiNewlineRe.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}
