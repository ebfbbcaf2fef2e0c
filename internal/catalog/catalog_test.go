package catalog

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTiers(t *testing.T) {
	tiers := DefaultTiers()

	base, ok := tiers.Lookup(0)
	require.True(t, ok)
	assert.True(t, base.Purchasable(), "tier 0 costs nothing")
	assert.False(t, base.Accrues())
	assert.True(t, base.TapReward.Equal(decimal.RequireFromString("0.000001")))

	_, ok = tiers.Lookup(5)
	assert.False(t, ok, "level 5 is not in the table")

	seven, ok := tiers.Lookup(7)
	require.True(t, ok)
	assert.False(t, seven.Purchasable(), "announced tiers are not for sale")
}

func TestTapRewardFallsBackToBaseTier(t *testing.T) {
	tiers := DefaultTiers()
	assert.True(t, tiers.TapReward(5).Equal(decimal.RequireFromString("0.000001")))
	assert.True(t, tiers.TapReward(3).Equal(decimal.RequireFromString("0.001")))
}

func TestNextPurchasable(t *testing.T) {
	tiers := DefaultTiers()

	next, ok := tiers.NextPurchasable(0)
	require.True(t, ok)
	assert.Equal(t, 1, next.Level)

	next, ok = tiers.NextPurchasable(4)
	require.True(t, ok)
	assert.Equal(t, 6, next.Level, "level 5 is skipped")

	_, ok = tiers.NextPurchasable(6)
	assert.False(t, ok, "7 and 8 are not available yet")
}

func TestTasksLookup(t *testing.T) {
	tasks := DefaultTasks()
	ad, ok := tasks.Lookup("task_2")
	require.True(t, ok)
	assert.Equal(t, TaskRepeatCooldown, ad.Kind)
	assert.Len(t, tasks.All(), 3)

	_, ok = tasks.Lookup("nope")
	assert.False(t, ok)
}

func TestTierJSONIncludesPurchasable(t *testing.T) {
	seven, ok := DefaultTiers().Lookup(7)
	require.True(t, ok)

	raw, err := json.Marshal(seven)
	require.NoError(t, err)
	assert.JSONEq(t, `{"level":7,"investment":"15000","daily_profit":"0","tap_reward":"0","purchasable":false}`, string(raw))
}
