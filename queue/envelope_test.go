package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docai/lifecycle"
)

func TestNewEnvelope(t *testing.T) {
	env := NewEnvelope(KindDocument, "doc_1", lifecycle.TagConversionDone)
	assert.Equal(t, KindDocument, env.Kind)
	assert.Equal(t, "doc_1", env.EntityID)
	assert.Equal(t, lifecycle.TagConversionDone, env.Tag)
	assert.Equal(t, 0, env.Attempt)
	assert.True(t, env.NotBefore.IsZero())
	assert.NotEmpty(t, env.Token)
}

func TestToken_Deterministic(t *testing.T) {
	a := Token(KindDocument, "doc_1", lifecycle.TagConversionDone)
	b := Token(KindDocument, "doc_1", lifecycle.TagConversionDone)
	assert.Equal(t, a, b)

	// Any component change yields a different token.
	assert.NotEqual(t, a, Token(KindQuery, "doc_1", lifecycle.TagConversionDone))
	assert.NotEqual(t, a, Token(KindDocument, "doc_2", lifecycle.TagConversionDone))
	assert.NotEqual(t, a, Token(KindDocument, "doc_1", lifecycle.TagStorageDone))
}

func TestToken_SeparatorAmbiguity(t *testing.T) {
	// Concatenation-equal inputs must not collide.
	a := Token(KindDocument, "ab", lifecycle.Tag("c"))
	b := Token(KindDocument, "a", lifecycle.Tag("bc"))
	assert.NotEqual(t, a, b)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	in := Envelope{
		Kind:      KindQuery,
		EntityID:  "query_1",
		Tag:       lifecycle.TagContextRetrieved,
		Token:     Token(KindQuery, "query_1", lifecycle.TagContextRetrieved),
		Attempt:   3,
		NotBefore: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	out, err := UnmarshalEnvelope(MarshalEnvelope(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUnmarshalEnvelope_Malformed(t *testing.T) {
	_, err := UnmarshalEnvelope([]byte{0xff, 0x01})
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}
