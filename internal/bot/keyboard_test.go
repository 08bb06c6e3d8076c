package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameronsjo/savingsbot/internal/savings"
)

func goalsNamed(names ...string) []savings.Goal {
	goals := make([]savings.Goal, len(names))
	for i, n := range names {
		goals[i] = savings.Goal{ID: uint64(i + 1), Name: n, Currency: "USD", Kind: savings.KindGoal}
	}
	return goals
}

func TestKeyboard(t *testing.T) {
	t.Run("single page has no navigation", func(t *testing.T) {
		kb := Keyboard(goalsNamed("a", "b"), prefixDelete, 0, 5)
		require.Len(t, kb.InlineKeyboard, 2)
		assert.Equal(t, "delete_2", *kb.InlineKeyboard[1][0].CallbackData)
	})

	t.Run("middle page has both directions", func(t *testing.T) {
		kb := Keyboard(goalsNamed("a", "b", "c", "d", "e"), prefixProgress, 1, 2)
		require.Len(t, kb.InlineKeyboard, 3)
		assert.Equal(t, "progress_3", *kb.InlineKeyboard[0][0].CallbackData)

		nav := kb.InlineKeyboard[2]
		require.Len(t, nav, 2)
		assert.Equal(t, "nav_progress_0", *nav[0].CallbackData)
		assert.Equal(t, "nav_progress_2", *nav[1].CallbackData)
	})

	t.Run("debt label", func(t *testing.T) {
		goals := []savings.Goal{{ID: 9, Name: "Loan", Currency: "EUR", Kind: savings.KindDebt}}
		kb := Keyboard(goals, prefixAdd, 0, 5)
		assert.Equal(t, "⛓️ Loan (EUR)", kb.InlineKeyboard[0][0].Text)
	})

	t.Run("page past the end is clamped", func(t *testing.T) {
		kb := Keyboard(goalsNamed("a", "b", "c"), prefixAdd, 7, 2)
		require.Len(t, kb.InlineKeyboard, 2)
		assert.Equal(t, "add_to_3", *kb.InlineKeyboard[0][0].CallbackData)
		assert.Equal(t, "nav_add_to_0", *kb.InlineKeyboard[1][0].CallbackData)
	})

	t.Run("no goals", func(t *testing.T) {
		kb := Keyboard(nil, prefixAdd, 0, 5)
		assert.Empty(t, kb.InlineKeyboard)
	})
}

func TestParseNav(t *testing.T) {
	tests := []struct {
		data       string
		wantPrefix string
		wantPage   int
		wantErr    bool
	}{
		{data: "nav_add_to_3", wantPrefix: "add_to", wantPage: 3},
		{data: "nav_delete_0", wantPrefix: "delete", wantPage: 0},
		{data: "nav_progress_12", wantPrefix: "progress", wantPage: 12},
		{data: "nav_add_to_x", wantErr: true},
		{data: "nav_add_to_-1", wantErr: true},
		{data: "nav_3", wantErr: true},
		{data: "delete_3", wantErr: true},
		{data: "nav_", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			prefix, page, err := ParseNav(tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, errBadCallback)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrefix, prefix)
			assert.Equal(t, tt.wantPage, page)
		})
	}
}

func TestParseSelection(t *testing.T) {
	id, err := ParseSelection("add_to_42", prefixAdd)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	_, err = ParseSelection("add_to_", prefixAdd)
	assert.ErrorIs(t, err, errBadCallback)

	_, err = ParseSelection("delete_4", prefixAdd)
	assert.ErrorIs(t, err, errBadCallback)
}
