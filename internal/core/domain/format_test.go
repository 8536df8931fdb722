package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFormat_RoundTrip(t *testing.T) {
	original := &FormattedText{HTML: "<h1>Title</h1>", Plain: "Title"}

	blob, err := EncodeFormat(original)
	require.NoError(t, err)

	decoded, err := DecodeFormat(blob)
	require.NoError(t, err)
	assert.Equal(t, original.HTML, decoded.HTML)
	assert.Equal(t, original.Plain, decoded.Plain)
	assert.False(t, decoded.Degraded)
	assert.False(t, decoded.Placeholder)
}

func TestEncodeFormat_RefusesDegraded(t *testing.T) {
	_, err := EncodeFormat(&FormattedText{Plain: "fallback", Degraded: true})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = EncodeFormat(&FormattedText{Plain: "none", Placeholder: true})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = EncodeFormat(nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDecodeFormat_Empty(t *testing.T) {
	_, err := DecodeFormat(nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = DecodeFormat([]byte{})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDecodeFormat_Garbage(t *testing.T) {
	_, err := DecodeFormat([]byte("}{ not json"))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestDecodeFormat_VersionMismatch(t *testing.T) {
	blob := []byte(`{"version":0,"html":"<p>x</p>","plain":"x"}`)
	_, err := DecodeFormat(blob)
	require.ErrorIs(t, err, ErrInvalidInput)
}
