package api

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/engagement-engine/generic"
	"github.com/warp/engagement-engine/generic/store"
)

func TestRateRefresher_StartsWithUSDOnly(t *testing.T) {
	rr := NewRateRefresher(store.NewMemory())

	rates := rr.Rates()
	require.Len(t, rates, 1)
	assert.True(t, rates[generic.USD].Equal(decimal.NewFromInt(1)))
	assert.True(t, rr.LoadedAt().IsZero())
}

func TestRateRefresher_Refresh(t *testing.T) {
	// GIVEN: A store with EUR and a refresher that has not loaded yet
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.SaveRate(ctx, generic.CurrencyRate{Code: "EUR", RateToUSD: decimal.RequireFromString("0.85")}))
	rr := NewRateRefresher(s)

	// WHEN: Refreshing
	require.NoError(t, rr.Refresh(ctx))

	// THEN: The snapshot holds both codes
	assert.Contains(t, rr.Rates(), generic.Currency("EUR"))
	assert.False(t, rr.LoadedAt().IsZero())

	// AND: An old snapshot is unaffected by later writes until the next refresh
	old := rr.Rates()
	require.NoError(t, s.SaveRate(ctx, generic.CurrencyRate{Code: "GBP", RateToUSD: decimal.RequireFromString("0.79")}))
	require.NoError(t, rr.Refresh(ctx))
	assert.NotContains(t, old, generic.Currency("GBP"))
	assert.Contains(t, rr.Rates(), generic.Currency("GBP"))
}

func TestRateRefresher_StartStop(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.SaveRate(ctx, generic.CurrencyRate{Code: "JPY", RateToUSD: decimal.RequireFromString("149.5")}))

	rr := NewRateRefresher(s)
	rr.Interval = 10 * time.Millisecond
	rr.Start()
	t.Cleanup(rr.Stop)

	// The first reload runs as soon as the loop starts
	assert.Eventually(t, func() bool {
		_, ok := rr.Rates()["JPY"]
		return ok
	}, time.Second, 5*time.Millisecond)

	rr.Stop()
	rr.Stop() // second stop is a no-op
}

func TestRateRefresher_DisabledDoesNotStart(t *testing.T) {
	rr := NewRateRefresher(store.NewMemory())
	rr.Enabled = false
	rr.Start()
	rr.Stop()

	assert.True(t, rr.LoadedAt().IsZero())
}
