package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMockAccounts_DeterministicForSameSeed(t *testing.T) {
	cfg := MockDataConfig{Seed: 7, AccountCount: 5}
	a := GenerateMockAccounts(cfg)
	b := GenerateMockAccounts(cfg)
	require.Len(t, a, 5)
	assert.Equal(t, a, b)
}

func TestGenerateMockAccounts_DifferentSeedsDiffer(t *testing.T) {
	a := GenerateMockAccounts(MockDataConfig{Seed: 1, AccountCount: 5})
	b := GenerateMockAccounts(MockDataConfig{Seed: 2, AccountCount: 5})
	assert.NotEqual(t, a, b)
}

func TestGenerateMockAccounts_NAVAndCashWithinExpectedRanges(t *testing.T) {
	accounts := GenerateMockAccounts(DefaultMockDataConfig())
	for _, a := range accounts {
		assert.GreaterOrEqual(t, a.NAV, 9_000_000.0)
		assert.LessOrEqual(t, a.NAV, 600_000_000.0)
		assert.GreaterOrEqual(t, a.AvailableCash, 0.0)
		assert.LessOrEqual(t, a.AvailableCash, a.NAV)
	}
}

func TestGenerateMockSecurity_Deterministic(t *testing.T) {
	cfg := MockDataConfig{Seed: 99}
	a := GenerateMockSecurity(cfg)
	b := GenerateMockSecurity(cfg)
	assert.Equal(t, a, b)
	assert.Greater(t, a.Price, 0.0)
	assert.Equal(t, 1000.0, a.MinDenomination)
}
