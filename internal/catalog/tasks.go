package catalog

import (
	"github.com/shopspring/decimal"
)

type TaskKind string

const (
	TaskOneOff         TaskKind = "one_off"
	TaskReferralGated  TaskKind = "referral_gated"
	TaskRepeatCooldown TaskKind = "repeatable_cooldown"
)

type Task struct {
	ID     string          `json:"id"`
	Title  string          `json:"title"`
	Reward decimal.Decimal `json:"reward"`
	Link   string          `json:"link,omitempty"`
	Kind   TaskKind        `json:"kind"`
}

type Tasks struct {
	byID    map[string]Task
	ordered []Task
}

func NewTasks(tasks []Task) *Tasks {
	c := &Tasks{byID: make(map[string]Task, len(tasks))}
	for _, t := range tasks {
		if _, dup := c.byID[t.ID]; dup {
			continue
		}
		c.byID[t.ID] = t
		c.ordered = append(c.ordered, t)
	}
	return c
}

func DefaultTasks() *Tasks {
	return NewTasks([]Task{
		{ID: "task_1", Title: "Join Telegram Channel", Reward: decimal.NewFromInt(10), Link: "https://t.me/tappercombat", Kind: TaskOneOff},
		{ID: "task_2", Title: "Watch Ads (Daily)", Reward: decimal.NewFromInt(10), Kind: TaskRepeatCooldown},
		{ID: "task_3", Title: "Refer 20 Active Users", Reward: decimal.NewFromInt(200), Kind: TaskReferralGated},
	})
}

func (c *Tasks) Lookup(id string) (Task, bool) {
	t, ok := c.byID[id]
	return t, ok
}

func (c *Tasks) All() []Task {
	out := make([]Task, len(c.ordered))
	copy(out, c.ordered)
	return out
}
