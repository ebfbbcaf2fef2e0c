// Package catalog holds the static VIP tier table and the task table.
package catalog

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// Tier is one VIP level. Tier 0 is the default every account starts with.
type Tier struct {
	Level       int             `json:"level"`
	Investment  decimal.Decimal `json:"investment"`
	DailyProfit decimal.Decimal `json:"daily_profit"`
	TapReward   decimal.Decimal `json:"tap_reward"`
}

// Purchasable is false for announced tiers that pay nothing yet.
func (t Tier) Purchasable() bool {
	return t.DailyProfit.IsPositive() || t.Investment.IsZero()
}

// MarshalJSON adds the derived purchasable flag.
func (t Tier) MarshalJSON() ([]byte, error) {
	type plain Tier
	return json.Marshal(struct {
		plain
		Purchasable bool `json:"purchasable"`
	}{plain(t), t.Purchasable()})
}

// Accrues reports whether the tier pays a daily profit.
func (t Tier) Accrues() bool {
	return t.DailyProfit.IsPositive()
}

type Tiers struct {
	byLevel map[int]Tier
	ordered []Tier
}

func NewTiers(tiers []Tier) *Tiers {
	c := &Tiers{byLevel: make(map[int]Tier, len(tiers))}
	for _, t := range tiers {
		c.byLevel[t.Level] = t
	}
	for _, t := range c.byLevel {
		c.ordered = append(c.ordered, t)
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].Level < c.ordered[j].Level })
	return c
}

// DefaultTiers is the production table. There is no level 5.
func DefaultTiers() *Tiers {
	d := decimal.RequireFromString
	return NewTiers([]Tier{
		{Level: 0, Investment: d("0"), DailyProfit: d("0"), TapReward: d("0.000001")},
		{Level: 1, Investment: d("500"), DailyProfit: d("50"), TapReward: d("0.00001")},
		{Level: 2, Investment: d("1000"), DailyProfit: d("120"), TapReward: d("0.0001")},
		{Level: 3, Investment: d("2000"), DailyProfit: d("300"), TapReward: d("0.001")},
		{Level: 4, Investment: d("5000"), DailyProfit: d("550"), TapReward: d("0.01")},
		{Level: 6, Investment: d("10000"), DailyProfit: d("1400"), TapReward: d("0.1")},
		{Level: 7, Investment: d("15000"), DailyProfit: d("0"), TapReward: d("0")},
		{Level: 8, Investment: d("20000"), DailyProfit: d("0"), TapReward: d("0")},
	})
}

func (c *Tiers) Lookup(level int) (Tier, bool) {
	t, ok := c.byLevel[level]
	return t, ok
}

// TapReward returns the reward for level, falling back to the base tier when
// the level is not in the table.
func (c *Tiers) TapReward(level int) decimal.Decimal {
	if t, ok := c.byLevel[level]; ok {
		return t.TapReward
	}
	if len(c.ordered) == 0 {
		return decimal.Zero
	}
	return c.ordered[0].TapReward
}

// NextPurchasable returns the lowest purchasable tier above current.
func (c *Tiers) NextPurchasable(current int) (Tier, bool) {
	for _, t := range c.ordered {
		if t.Level > current && t.Purchasable() {
			return t, true
		}
	}
	return Tier{}, false
}

// All returns the tiers in ascending level order.
func (c *Tiers) All() []Tier {
	out := make([]Tier, len(c.ordered))
	copy(out, c.ordered)
	return out
}
