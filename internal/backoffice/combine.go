package backoffice

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/backoffice/internal/action"
	"github.com/roach88/backoffice/internal/record"
	"github.com/roach88/backoffice/internal/remote"
)

// TaskIDField identifies products in the tasks collection.
const TaskIDField = "product_id"

// MaxCombinedSums caps how many selected tasks contribute running totals.
const MaxCombinedSums = 10

// initialRunningTask is the task counter a new combination starts from.
const initialRunningTask = 2

// Combination is the payload that assigns a combination task to a member.
type Combination struct {
	Email      string          `json:"email"`
	Phone      string          `json:"phone"`
	Username   string          `json:"username"`
	TargetTask int             `json:"targetTask"`
	TaskList   []record.Record `json:"taskList"`
	AmountSums []json.Number   `json:"amountSums"`
	TaskSize   int             `json:"taskSize"`
	RuningTask int             `json:"runingTask"`
}

// BuildCombination validates a combination for user and computes its
// running totals. selectedIDs keep their order; every id must name a task.
func BuildCombination(user record.Record, tasks []record.Record, selectedIDs []string, targetTask string) (*Combination, error) {
	target, err := strconv.Atoi(strings.TrimSpace(targetTask))
	if err != nil || target < 1 {
		return nil, action.Invalid("targetTask", "must be a whole number of at least 1, got %q", targetTask)
	}
	if len(selectedIDs) == 0 {
		return nil, action.Invalid("taskList", "select at least one task")
	}

	byID := make(map[string]record.Record, len(tasks))
	for _, t := range tasks {
		if id := t.ID(TaskIDField); id != "" {
			byID[id] = t
		}
	}

	seen := make(map[string]bool, len(selectedIDs))
	selected := make([]record.Record, 0, len(selectedIDs))
	for _, id := range selectedIDs {
		id = strings.TrimSpace(id)
		if seen[id] {
			return nil, action.Invalid("taskList", "task %q selected twice", id)
		}
		seen[id] = true
		t, ok := byID[id]
		if !ok {
			return nil, action.Invalid("taskList", "unknown task %q", id)
		}
		selected = append(selected, t)
	}

	var (
		sums       []json.Number
		cumulative decimal.Decimal
	)
	for i, t := range selected {
		if i == MaxCombinedSums {
			break
		}
		price, ok := record.Number(t["price"])
		if !ok {
			return nil, action.Invalid("taskList", "task %q has no numeric price", t.ID(TaskIDField))
		}
		cumulative = cumulative.Add(price)
		sums = append(sums, Money(cumulative))
	}

	text := func(field string) string {
		s, _ := user.Text(field)
		return s
	}
	return &Combination{
		Email:      text("email"),
		Phone:      text("phone"),
		Username:   text("username"),
		TargetTask: target,
		TaskList:   selected,
		AmountSums: sums,
		TaskSize:   len(selected),
		RuningTask: initialRunningTask,
	}, nil
}

// SubmitCombination POSTs c to the combine-task resource.
func SubmitCombination(ctx context.Context, client *remote.Client, c *Combination) error {
	_, err := client.Collection(CombineResource, "").Create(ctx, c)
	return err
}
