package backoffice

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/backoffice/internal/action"
	"github.com/roach88/backoffice/internal/record"
)

func catalogueTasks(n int) []record.Record {
	tasks := make([]record.Record, n)
	for i := range tasks {
		tasks[i] = record.Record{TaskIDField: fmt.Sprintf("p%d", i), "price": json.Number("10.005")}
	}
	return tasks
}

func TestBuildCombination(t *testing.T) {
	user := record.Record{"email": "alice@example.com", "phone": "5551", "username": "alice"}
	tasks := []record.Record{
		{TaskIDField: "p1", "price": 10.5},
		{TaskIDField: "p2", "price": "4.25"},
		{TaskIDField: "p3", "price": json.Number("0.333")},
	}

	c, err := BuildCombination(user, tasks, []string{"p3", "p1"}, " 7 ")
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", c.Email)
	assert.Equal(t, "5551", c.Phone)
	assert.Equal(t, "alice", c.Username)
	assert.Equal(t, 7, c.TargetTask)
	assert.Equal(t, 2, c.TaskSize)
	assert.Equal(t, 2, c.RuningTask)
	assert.Equal(t, []json.Number{"0.33", "10.83"}, c.AmountSums)
	assert.Equal(t, "p3", c.TaskList[0][TaskIDField], "selection order kept")

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"runingTask":2`)
	assert.Contains(t, string(data), `"amountSums":[0.33,10.83]`)
}

func TestBuildCombination_CapsSumsAtTen(t *testing.T) {
	tasks := catalogueTasks(12)
	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.ID(TaskIDField))
	}
	c, err := BuildCombination(record.Record{}, tasks, ids, "1")
	require.NoError(t, err)
	assert.Equal(t, 12, c.TaskSize)
	require.Len(t, c.AmountSums, MaxCombinedSums)
	assert.Equal(t, json.Number("100.05"), c.AmountSums[9])
}

func TestBuildCombination_Validation(t *testing.T) {
	tasks := []record.Record{{TaskIDField: "p1", "price": 1}, {TaskIDField: "p2"}}
	tests := []struct {
		name   string
		ids    []string
		target string
		field  string
	}{
		{"empty target", []string{"p1"}, "", "targetTask"},
		{"zero target", []string{"p1"}, "0", "targetTask"},
		{"fractional target", []string{"p1"}, "2.5", "targetTask"},
		{"no tasks", nil, "3", "taskList"},
		{"unknown task", []string{"p9"}, "3", "taskList"},
		{"duplicate task", []string{"p1", "p1"}, "3", "taskList"},
		{"task without price", []string{"p2"}, "3", "taskList"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildCombination(record.Record{}, tasks, tt.ids, tt.target)
			var ve *action.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestSubmitCombination(t *testing.T) {
	f := newFixture(t)
	c, err := BuildCombination(record.Record{"email": "alice@example.com"}, []record.Record{{TaskIDField: "p1", "price": 3}}, []string{"p1"}, "2")
	require.NoError(t, err)

	require.NoError(t, SubmitCombination(context.Background(), f.client, c))
	stored := f.backend.Records(CombineResource)
	require.Len(t, stored, 1)
	assert.Equal(t, "alice@example.com", stored[0]["email"])
	assert.Equal(t, json.Number("2"), stored[0]["runingTask"])
}
