package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestDeterminism(t *testing.T) {
	data := []byte(`{"kind":"zero"}`)
	assert.Equal(t, Digest(DomainForm, data), Digest(DomainForm, data))
	assert.Len(t, Digest(DomainForm, data), 64, "SHA-256 hex is 64 characters")
}

func TestDomainSeparationPreventsCrossTypeCollision(t *testing.T) {
	data := []byte(`{"kind":"zero"}`)
	assert.NotEqual(t, Digest(DomainForm, data), Digest(DomainUnit, data))
	assert.NotEqual(t, Digest(DomainUnit, data), Digest(DomainBundle, data))
}

func TestDigestCanonical(t *testing.T) {
	a, err := DigestCanonical(DomainBundle, map[string]any{"a": 1, "b": "x"})
	require.NoError(t, err)
	b, err := DigestCanonical(DomainBundle, map[string]any{"b": "x", "a": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b, "key order must not matter")

	_, err = DigestCanonical(DomainBundle, 1.5)
	assert.Error(t, err)
}
