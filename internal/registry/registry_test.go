package registry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRefs struct {
	referenced bool
}

func (s stubRefs) ItemReferenced(ctx context.Context, itemID uuid.UUID) (bool, error) {
	return s.referenced, nil
}

func TestAddAndGetItem(t *testing.T) {
	svc := NewMemoryService(nil)
	ctx := context.Background()
	owner := uuid.New()

	item, err := svc.AddItem(ctx, owner, "Ladder", "3m aluminium", []string{"tools", "outdoor"}, RiskHigh)
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, item.Status)
	assert.Equal(t, 1, item.Version)

	got, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, []string{"tools", "outdoor"}, got.Tags)

	_, err = svc.GetItem(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.AddItem(ctx, owner, "Mystery", "", nil, "extreme")
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestUpdateItemOwnerOnly(t *testing.T) {
	svc := NewMemoryService(nil)
	ctx := context.Background()
	owner := uuid.New()

	item, err := svc.AddItem(ctx, owner, "Raclette grill", "", nil, "")
	require.NoError(t, err)

	name := "Raclette grill (8 pans)"
	_, err = svc.UpdateItem(ctx, item.ID, uuid.New(), ItemUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotOwner)

	updated, err := svc.UpdateItem(ctx, item.ID, owner, ItemUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, item.Version+1, updated.Version)
}

func TestUpdateItemValidation(t *testing.T) {
	svc := NewMemoryService(nil)
	ctx := context.Background()
	owner := uuid.New()

	item, err := svc.AddItem(ctx, owner, "Projector", "", nil, "")
	require.NoError(t, err)

	// Owners may park an item as unavailable but never set "borrowed";
	// that status belongs to the borrowing lifecycle.
	borrowed := StatusBorrowed
	_, err = svc.UpdateItem(ctx, item.ID, owner, ItemUpdate{Status: &borrowed})
	assert.ErrorIs(t, err, ErrInvalidField)

	unavailable := StatusUnavailable
	updated, err := svc.UpdateItem(ctx, item.ID, owner, ItemUpdate{Status: &unavailable})
	require.NoError(t, err)
	assert.Equal(t, StatusUnavailable, updated.Status)

	bogus := "lost"
	_, err = svc.UpdateItem(ctx, item.ID, owner, ItemUpdate{Status: &bogus})
	assert.ErrorIs(t, err, ErrInvalidField)

	risk := "extreme"
	_, err = svc.UpdateItem(ctx, item.ID, owner, ItemUpdate{RiskLevel: &risk})
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestUpdateItemStatusLockedWhileBorrowed(t *testing.T) {
	svc := NewMemoryService(nil)
	ctx := context.Background()
	owner := uuid.New()

	item, err := svc.AddItem(ctx, owner, "Pressure washer", "", nil, "")
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, item.ID, StatusBorrowed)
	require.NoError(t, err)

	// While a loan holds the item, the owner cannot move it out of
	// "borrowed" from under the lifecycle.
	available := StatusAvailable
	_, err = svc.UpdateItem(ctx, item.ID, owner, ItemUpdate{Status: &available})
	assert.ErrorIs(t, err, ErrItemReferenced)

	unavailable := StatusUnavailable
	_, err = svc.UpdateItem(ctx, item.ID, owner, ItemUpdate{Status: &unavailable})
	assert.ErrorIs(t, err, ErrItemReferenced)

	// Non-status edits are still the owner's business.
	name := "Pressure washer (new hose)"
	updated, err := svc.UpdateItem(ctx, item.ID, owner, ItemUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, StatusBorrowed, updated.Status)

	// Once released, parking it works again.
	_, err = svc.SetStatus(ctx, item.ID, StatusAvailable)
	require.NoError(t, err)
	updated, err = svc.UpdateItem(ctx, item.ID, owner, ItemUpdate{Status: &unavailable})
	require.NoError(t, err)
	assert.Equal(t, StatusUnavailable, updated.Status)
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()

	svc := NewMemoryService(stubRefs{referenced: true})
	item, err := svc.AddItem(ctx, owner, "Tent", "", nil, "")
	require.NoError(t, err)

	err = svc.RemoveItem(ctx, item.ID, owner)
	assert.ErrorIs(t, err, ErrItemReferenced)

	svc = NewMemoryService(stubRefs{})
	item, err = svc.AddItem(ctx, owner, "Tent", "", nil, "")
	require.NoError(t, err)

	err = svc.RemoveItem(ctx, item.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, svc.RemoveItem(ctx, item.ID, owner))
	_, err = svc.GetItem(ctx, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetStatusBypassesOwnership(t *testing.T) {
	svc := NewMemoryService(nil)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, uuid.New(), "Drill", "", nil, "")
	require.NoError(t, err)

	updated, err := svc.SetStatus(ctx, item.ID, StatusBorrowed)
	require.NoError(t, err)
	assert.Equal(t, StatusBorrowed, updated.Status)

	_, err = svc.SetStatus(ctx, item.ID, "lost")
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestListItemsOrderedByCreation(t *testing.T) {
	svc := NewMemoryService(nil)
	ctx := context.Background()
	owner := uuid.New()

	first, err := svc.AddItem(ctx, owner, "A", "", nil, "")
	require.NoError(t, err)
	second, err := svc.AddItem(ctx, owner, "B", "", nil, "")
	require.NoError(t, err)

	items, err := svc.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	ids := []uuid.UUID{items[0].ID, items[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}
