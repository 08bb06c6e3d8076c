package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameronsjo/savingsbot/internal/savings"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "data", "savings_bot.db"), Options{})
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestStore_InsertGoal(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	g1 := &savings.Goal{UserID: 1, Name: "Vacation", Target: 1000, Currency: "USD", Kind: savings.KindGoal}
	require.NoError(t, s.InsertGoal(ctx, g1))
	assert.Equal(t, uint64(1), g1.ID)

	g2 := &savings.Goal{UserID: 1, Name: "Card", Target: 500, Currency: "USD", Kind: savings.KindDebt}
	require.NoError(t, s.InsertGoal(ctx, g2))
	assert.Equal(t, uint64(2), g2.ID)

	dup := &savings.Goal{UserID: 2, Name: "Vacation", Target: 1, Currency: "EUR", Kind: savings.KindGoal}
	err := s.InsertGoal(ctx, dup)
	assert.ErrorIs(t, err, savings.ErrDuplicateName)

	got, err := s.Goal(ctx, g1.ID)
	require.NoError(t, err)
	assert.Equal(t, "Vacation", got.Name)
	assert.Equal(t, g1.ID, got.ID)

	goals, err := s.Goals(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, goals, 2)

	goals, err = s.Goals(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, goals)
}

func TestStore_AddEntry(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	g := &savings.Goal{UserID: 1, Name: "Bike", Target: 300, Currency: "EUR", Kind: savings.KindGoal}
	require.NoError(t, s.InsertGoal(ctx, g))

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	updated, err := s.AddEntry(ctx, g.ID, 120, at)
	require.NoError(t, err)
	assert.InDelta(t, 120, updated.Current, 0.0001)

	updated, err = s.AddEntry(ctx, g.ID, 30.5, at.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 150.5, updated.Current, 0.0001)

	entries, err := s.Entries(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].SavedAt.Equal(at))

	_, err = s.AddEntry(ctx, 999, 1, at)
	assert.ErrorIs(t, err, savings.ErrNotFound)
}

func TestStore_AddEntryRejectsOverflow(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	g := &savings.Goal{UserID: 1, Name: "Moon", Target: 1e308, Currency: "USD", Kind: savings.KindGoal}
	require.NoError(t, s.InsertGoal(ctx, g))

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	_, err := s.AddEntry(ctx, g.ID, 1e308, at)
	require.NoError(t, err)

	_, err = s.AddEntry(ctx, g.ID, 1e308, at)
	assert.ErrorIs(t, err, savings.ErrInvalidAmount)

	stored, err := s.Goal(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1e308, stored.Current, "rejected entry leaves the total alone")
	entries, err := s.Entries(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_DeleteGoalCascades(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	keep := &savings.Goal{UserID: 1, Name: "Keep", Target: 10, Currency: "USD", Kind: savings.KindGoal}
	drop := &savings.Goal{UserID: 1, Name: "Drop", Target: 10, Currency: "USD", Kind: savings.KindGoal}
	require.NoError(t, s.InsertGoal(ctx, keep))
	require.NoError(t, s.InsertGoal(ctx, drop))

	now := time.Now().UTC()
	_, err := s.AddEntry(ctx, keep.ID, 1, now)
	require.NoError(t, err)
	_, err = s.AddEntry(ctx, drop.ID, 2, now)
	require.NoError(t, err)

	require.NoError(t, s.DeleteGoal(ctx, drop.ID))

	_, err = s.Goal(ctx, drop.ID)
	assert.ErrorIs(t, err, savings.ErrNotFound)

	entries, err := s.Entries(ctx, drop.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = s.Entries(ctx, keep.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.ErrorIs(t, s.DeleteGoal(ctx, drop.ID), savings.ErrNotFound)

	// A deleted name is free again.
	again := &savings.Goal{UserID: 1, Name: "Drop", Target: 10, Currency: "USD", Kind: savings.KindDebt}
	require.NoError(t, s.InsertGoal(ctx, again))
	assert.Equal(t, uint64(3), again.ID)
}

func TestStore_SetNotified90(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	g := &savings.Goal{UserID: 1, Name: "TV", Target: 100, Currency: "USD", Kind: savings.KindGoal}
	require.NoError(t, s.InsertGoal(ctx, g))
	require.NoError(t, s.SetNotified90(ctx, g.ID))

	got, err := s.Goal(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, got.Notified90)

	assert.ErrorIs(t, s.SetNotified90(ctx, 404), savings.ErrNotFound)
}

func TestStore_Reminders(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveReminder(ctx, savings.Reminder{ChatID: 10, Hour: 9, Minute: 0}))
	require.NoError(t, s.SaveReminder(ctx, savings.Reminder{ChatID: 10, Hour: 21, Minute: 30}))

	reminders, err := s.Reminders(ctx)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, savings.Reminder{ChatID: 10, Hour: 21, Minute: 30}, reminders[0])

	require.NoError(t, s.DeleteReminder(ctx, 10))
	require.NoError(t, s.DeleteReminder(ctx, 10), "deleting a missing reminder is not an error")

	reminders, err = s.Reminders(ctx)
	require.NoError(t, err)
	assert.Empty(t, reminders)
}

func TestStore_CancelledContext(t *testing.T) {
	s := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Goals(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_WriteToAndReopen(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	g := &savings.Goal{UserID: 1, Name: "Copy me", Target: 10, Currency: "USD", Kind: savings.KindGoal}
	require.NoError(t, s.InsertGoal(ctx, g))

	var buf bytes.Buffer
	n, err := s.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	copyPath := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, os.WriteFile(copyPath, buf.Bytes(), 0600))

	copied, err := Open(copyPath, Options{ReadOnly: true})
	require.NoError(t, err)
	defer copied.Close()

	got, err := copied.Goal(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Copy me", got.Name)
}
