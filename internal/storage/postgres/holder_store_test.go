package postgres

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrpl-bond-tracker/internal/domain"
	"xrpl-bond-tracker/internal/storage"
)

func testHolder(instrumentID, address string, balance int64) *domain.HolderBalance {
	return &domain.HolderBalance{
		InstrumentID:    instrumentID,
		Address:         address,
		Balance:         big.NewInt(balance),
		FirstAcquiredAt: 1700000000000,
		LastUpdatedAt:   1700000000000,
		CouponsReceived: big.NewInt(0),
	}
}

func TestHolderStore_PutGetDelete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, NewInstrumentStore(pool).Insert(ctx, testInstrument("bond-001", "mpt-001")))

	store := NewHolderStore(pool)

	h := testHolder("bond-001", "rAliceXXXXXXXXXXXXXXXXXXXXXXXXXXXX", 1000)
	require.NoError(t, store.Put(ctx, h))

	got, err := store.Get(ctx, h.InstrumentID, h.Address)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Balance.Cmp(big.NewInt(1000)))
	assert.False(t, got.Authorized)

	// Upsert replaces balance and flags.
	h.Balance = big.NewInt(2500)
	h.Authorized = true
	require.NoError(t, store.Put(ctx, h))

	got, err = store.Get(ctx, h.InstrumentID, h.Address)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Balance.Cmp(big.NewInt(2500)))
	assert.True(t, got.Authorized)

	require.NoError(t, store.Delete(ctx, h.InstrumentID, h.Address))
	_, err = store.Get(ctx, h.InstrumentID, h.Address)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting an absent record is a no-op.
	require.NoError(t, store.Delete(ctx, h.InstrumentID, h.Address))
}

func TestHolderStore_ListByInstrument(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	instruments := NewInstrumentStore(pool)
	require.NoError(t, instruments.Insert(ctx, testInstrument("bond-001", "mpt-001")))
	require.NoError(t, instruments.Insert(ctx, testInstrument("bond-002", "mpt-002")))

	store := NewHolderStore(pool)
	require.NoError(t, store.Put(ctx, testHolder("bond-001", "rCarol", 300)))
	require.NoError(t, store.Put(ctx, testHolder("bond-001", "rAlice", 100)))
	require.NoError(t, store.Put(ctx, testHolder("bond-002", "rAlice", 999)))

	list, err := store.ListByInstrument(ctx, "bond-001")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "rAlice", list[0].Address)
	assert.Equal(t, "rCarol", list[1].Address)
}
