package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed_Deterministic(t *testing.T) {
	ctx := context.Background()
	cfg := SeedConfig{NumAccounts: 6, NumContracts: 25, Seed: 7}

	a, b := NewMemoryStore(), NewMemoryStore()
	require.NoError(t, Seed(ctx, a, cfg))
	require.NoError(t, Seed(ctx, b, cfg))

	accountsA, _ := a.ListAccounts(ctx, false)
	accountsB, _ := b.ListAccounts(ctx, false)
	assert.Equal(t, accountsA, accountsB)

	contractsA, _ := a.SearchContracts(ctx, "", false)
	contractsB, _ := b.SearchContracts(ctx, "", false)
	assert.Equal(t, contractsA, contractsB)
}

func TestSeed_Accounts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, Seed(ctx, s, SeedConfig{NumAccounts: 6, NumContracts: 0, Seed: 1}))

	accounts, err := s.ListAccounts(ctx, true)
	require.NoError(t, err)
	require.Len(t, accounts, 6)
	for i, a := range accounts {
		assert.Equal(t, int64(i+1), a.ID)
		assert.True(t, a.Simulated)
		assert.True(t, a.Balance.IsPositive())
	}
	assert.True(t, strings.HasPrefix(accounts[0].Name, "50KTC-V2-"))
	assert.True(t, strings.HasPrefix(accounts[5].Name, "150KTC-V2-"))
	assert.Equal(t, 0, s.Stats(ctx).Contracts)
}

func TestSeed_Contracts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, Seed(ctx, s, SeedConfig{NumAccounts: 1, NumContracts: 10, Seed: 42}))

	contracts, err := s.SearchContracts(ctx, "", false)
	require.NoError(t, err)
	// Id collisions may drop a contract; never more than requested.
	assert.LessOrEqual(t, len(contracts), 10)
	assert.NotEmpty(t, contracts)

	for _, c := range contracts {
		assert.True(t, strings.HasPrefix(c.ID, "CON."+c.SymbolID+"."), c.ID)
		assert.True(t, c.TickSize.IsPositive(), c.ID)
		assert.True(t, c.TickValue.IsPositive(), c.ID)
		assert.NotEmpty(t, c.Name)
	}
}
