package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDeterministic(t *testing.T) {
	first, err := Hash("New Screening Guidelines Announced", "The panel updated its recommendations today.")
	require.NoError(t, err)

	second, err := Hash("New Screening Guidelines Announced", "The panel updated its recommendations today.")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestHashNormalizesWhitespaceAndCase(t *testing.T) {
	base, err := Hash("Trial Results Published", "Patients responded well to the combination therapy.")
	require.NoError(t, err)

	variants := []struct {
		name  string
		title string
		body  string
	}{
		{"upper case", "TRIAL RESULTS PUBLISHED", "PATIENTS RESPONDED WELL TO THE COMBINATION THERAPY."},
		{"extra spaces", "Trial   Results  Published", "Patients responded  well to the   combination therapy."},
		{"newlines and tabs", "Trial\nResults\tPublished", "Patients responded well\nto the combination\ttherapy."},
		{"surrounding whitespace", "  Trial Results Published  ", "\n Patients responded well to the combination therapy. \t"},
	}

	for _, tc := range variants {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Hash(tc.title, tc.body)
			require.NoError(t, err)
			assert.Equal(t, base, got)
		})
	}
}

func TestHashDistinguishesContent(t *testing.T) {
	first, err := Hash("Same Title", "First body.")
	require.NoError(t, err)

	second, err := Hash("Same Title", "Second body.")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestHashRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		title string
		body  string
	}{
		{"both empty", "", ""},
		{"whitespace only", "   ", "\n\t"},
		{"invalid utf8 title", string([]byte{0xff, 0xfe}), "body"},
		{"control characters", "title", "body\x00with\x01junk"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Hash(tc.title, tc.body)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestHashAllowsEmptyTitle(t *testing.T) {
	got, err := Hash("", "A body on its own is still hashable content.")
	require.NoError(t, err)
	assert.Len(t, got, 64)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "hello world", Normalize("  Hello \n\t World  "))
	assert.Equal(t, "", Normalize("   "))
	assert.Equal(t, "already normal", Normalize("already normal"))
}
