package static

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/runger/suggestengine/internal/engine"
)

func sampleEntries() []Entry {
	return []Entry{
		{Title: "Android", Description: "mobile OS", IntentAction: "view", IntentData: "wiki:android", IntentDataID: "1"},
		{Title: "Android Studio", Description: "IDE", IntentAction: "view", IntentData: "wiki:studio", IntentDataID: "2"},
		{Title: "Anchor", Description: "podcast app", IntentAction: "view", IntentData: "wiki:anchor", IntentDataID: "3"},
	}
}

func TestSourceSuggestPrefixMatch(t *testing.T) {
	s := New("static", "Static", "icon", 0, true, sampleEntries())

	resp, err := s.Suggest("and", 10, 58)
	require.NoError(t, err)
	require.Equal(t, engine.ResultOK, resp.ResultCode)
	require.Equal(t, 2, resp.Count)
	require.Len(t, resp.Suggestions, 2)
	require.Equal(t, "Android", resp.Suggestions[0].Title)
}

func TestSourceSuggestRespectsMaxResults(t *testing.T) {
	s := New("static", "Static", "icon", 0, true, sampleEntries())

	resp, err := s.Suggest("an", 1, 58)
	require.NoError(t, err)
	require.Equal(t, 3, resp.Count)
	require.Len(t, resp.Suggestions, 1)
}

func TestSourceSuggestNoMatch(t *testing.T) {
	s := New("static", "Static", "icon", 0, true, sampleEntries())

	resp, err := s.Suggest("zzz", 10, 58)
	require.NoError(t, err)
	require.Equal(t, 0, resp.Count)
	require.Empty(t, resp.Suggestions)
}

func TestSourceValidateShortcutFound(t *testing.T) {
	s := New("static", "Static", "icon", 0, true, sampleEntries())

	sug, err := s.ValidateShortcut("2")
	require.NoError(t, err)
	require.NotNil(t, sug)
	require.Equal(t, "Android Studio", sug.Title)
}

func TestSourceValidateShortcutMissing(t *testing.T) {
	s := New("static", "Static", "icon", 0, true, sampleEntries())

	sug, err := s.ValidateShortcut("does-not-exist")
	require.Error(t, err)
	require.Nil(t, sug)
}

func TestSourceQueryThreshold(t *testing.T) {
	s := New("static", "Static", "icon", 3, false, sampleEntries())
	require.Equal(t, 3, s.QueryThreshold())
	require.False(t, s.QueryAfterZeroResults())
}
