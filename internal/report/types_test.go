package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryTypeValid(t *testing.T) {
	for _, qt := range AllQueryTypes {
		assert.True(t, qt.Valid(), "expected %s to be valid", qt)
	}
	assert.False(t, QueryType("").Valid())
	assert.False(t, QueryType("summarization_query").Valid())
}

func TestShellValidate(t *testing.T) {
	sec := func(id string) Section { return Section{ID: id, Name: "n-" + id} }

	t.Run("ok", func(t *testing.T) {
		s := Shell{Sections: []Section{sec("a"), sec("b"), sec("c"), sec("d")}}
		require.NoError(t, s.Validate())
	})

	t.Run("empty section list is structurally valid", func(t *testing.T) {
		require.NoError(t, Shell{}.Validate())
	})

	t.Run("too many sections", func(t *testing.T) {
		s := Shell{Sections: []Section{sec("a"), sec("b"), sec("c"), sec("d"), sec("e")}}
		err := s.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTooManySections))
	})

	t.Run("missing id", func(t *testing.T) {
		s := Shell{Sections: []Section{sec("a"), {Name: "anonymous"}}}
		err := s.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingSectionID))
	})

	t.Run("duplicate id", func(t *testing.T) {
		s := Shell{Sections: []Section{sec("a"), sec("a")}}
		err := s.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDuplicateSectionID))
	})
}

func TestReplaceSection(t *testing.T) {
	original := []Section{
		{ID: "s1", Name: "one", Content: "draft one"},
		{ID: "s2", Name: "two", Content: "draft two"},
	}

	updated := ReplaceSection(original, Section{ID: "s2", Name: "two (final)", Content: "expanded"})

	// Original list is untouched.
	assert.Equal(t, "two", original[1].Name)
	assert.Equal(t, "draft two", original[1].Content)

	require.Len(t, updated, 2)
	assert.Equal(t, "two (final)", updated[1].Name)
	assert.Equal(t, "expanded", updated[1].Content)
	assert.Equal(t, original[0], updated[0])
}

func TestReplaceSectionUnknownID(t *testing.T) {
	original := []Section{{ID: "s1", Name: "one"}}
	updated := ReplaceSection(original, Section{ID: "nope", Name: "ghost"})
	assert.Equal(t, original, updated)
}

func TestResearchSections(t *testing.T) {
	s := Shell{Sections: []Section{
		{ID: "a", Research: true},
		{ID: "b", Research: false},
		{ID: "c", Research: true},
	}}
	got := s.ResearchSections()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}
