package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rkas/internal/core"
)

func TestStore_ItemLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	items, err := s.FetchItems(ctx)
	require.NoError(t, err)
	assert.NotNil(t, items, "empty fetch must be an empty slice, not nil")
	assert.Empty(t, items)

	require.NoError(t, s.InsertItem(ctx, core.BudgetItem{ID: "a", Name: "one"}))
	require.NoError(t, s.InsertItem(ctx, core.BudgetItem{ID: "b", Name: "two"}))
	assert.Error(t, s.InsertItem(ctx, core.BudgetItem{ID: "a"}))

	require.NoError(t, s.UpdateItem(ctx, core.BudgetItem{ID: "a", Name: "uno"}))
	require.NoError(t, s.UpdateItem(ctx, core.BudgetItem{ID: "zzz"}))
	require.NoError(t, s.DeleteItem(ctx, "b"))

	items, err = s.FetchItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "uno", items[0].Name)
}

func TestStore_Outage(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("network down")
	s.SetError(boom)

	_, err := s.FetchSettings(ctx)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.UpsertSettings(ctx, core.DefaultSettings()), boom)
	assert.Equal(t, 2, s.Calls())

	s.SetError(nil)
	got, err := s.FetchSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "failed upsert must not have stored anything")
}
