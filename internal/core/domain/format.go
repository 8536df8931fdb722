package domain

import (
	"encoding/json"
	"fmt"
)

// FormatVersion tags serialized CachedFormat blobs. Bumping it forces
// regeneration of every previously persisted blob on next access.
const FormatVersion = 1

// FormattedText is the rendered representation of one article field.
type FormattedText struct {
	// HTML is the styled rendering of the field's markdown source.
	HTML string

	// Plain is the unstyled text extracted from the same source.
	Plain string

	// Degraded marks a plain-text fallback produced after generation
	// failed. Degraded results are never persisted.
	Degraded bool

	// Placeholder marks the terminal "unable to load" representation
	// returned when the field has no raw text at all.
	Placeholder bool
}

// cachedFormat is the persisted envelope around a FormattedText.
// The version field lets future format changes force regeneration
// instead of relying solely on decode failures.
type cachedFormat struct {
	Version int    `json:"version"`
	HTML    string `json:"html"`
	Plain   string `json:"plain"`
}

// EncodeFormat serializes a FormattedText into a CachedFormat blob.
// Degraded and placeholder results must not be encoded.
func EncodeFormat(ft *FormattedText) ([]byte, error) {
	if ft == nil || ft.Degraded || ft.Placeholder {
		return nil, fmt.Errorf("%w: refusing to encode degraded format", ErrInvalidInput)
	}
	return json.Marshal(cachedFormat{
		Version: FormatVersion,
		HTML:    ft.HTML,
		Plain:   ft.Plain,
	})
}

// DecodeFormat deserializes a CachedFormat blob.
// Any failure, including a stale version, means the blob is unusable
// and the caller must invalidate and regenerate.
func DecodeFormat(blob []byte) (*FormattedText, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty format blob", ErrInvalidInput)
	}
	var cf cachedFormat
	if err := json.Unmarshal(blob, &cf); err != nil {
		return nil, &DecodeError{Detail: err.Error()}
	}
	if cf.Version != FormatVersion {
		return nil, fmt.Errorf("%w: format version %d, want %d", ErrInvalidInput, cf.Version, FormatVersion)
	}
	return &FormattedText{HTML: cf.HTML, Plain: cf.Plain}, nil
}
