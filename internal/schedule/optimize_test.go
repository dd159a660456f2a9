package schedule

import (
	"math"
	"math/rand"
	"testing"

	"github.com/nadmax/taskplan/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaximizeDuration_Sample(t *testing.T) {
	// Grocery Shopping (deadline 8) conflicts with Study OOP (start 2),
	// so the best chain is Study OOP -> Gym -> Complete Assignment.
	total, err := MaximizeDuration(sampleTasks())

	require.NoError(t, err)
	assert.Equal(t, 9.0, total)
}

func TestMaximizeDuration_SampleSortedByPriority(t *testing.T) {
	total, err := MaximizeDuration(Sort(sampleTasks(), task.KeyPriority))

	require.NoError(t, err)
	assert.Equal(t, 9.0, total)
}

func TestMaximizeDuration_Empty(t *testing.T) {
	_, err := MaximizeDuration(nil)

	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestMaximizeDuration_Single(t *testing.T) {
	total, err := MaximizeDuration(sampleTasks()[1:2])

	require.NoError(t, err)
	assert.Equal(t, 2.0, total)
}

func TestMaximizeDuration_InvalidTask(t *testing.T) {
	tasks := sampleTasks()
	tasks[2].Duration = -4

	_, err := MaximizeDuration(tasks)

	assert.ErrorIs(t, err, task.ErrInvalidTask)
}

func TestMaximizeDuration_NaNTask(t *testing.T) {
	tasks := append(sampleTasks(), task.Task{Name: "Ghost", Category: task.CategoryPersonal, Deadline: math.NaN(), Duration: math.NaN()})

	_, err := MaximizeDuration(tasks)

	assert.ErrorIs(t, err, task.ErrInvalidTask)
}

func TestMaximizeDuration_DoesNotMutateInput(t *testing.T) {
	input := sampleTasks()

	_, err := MaximizeDuration(input)

	require.NoError(t, err)
	assert.Equal(t, sampleTasks(), input)
}

func TestMaximizeDuration_ConflictPrefersLongerTask(t *testing.T) {
	tasks := []task.Task{
		{Name: "short", Category: task.CategoryPersonal, StartTime: 0, Deadline: 4, Duration: 1},
		{Name: "long", Category: task.CategoryPersonal, StartTime: 1, Deadline: 5, Duration: 4},
	}

	plan, err := Optimizer{}.Maximize(tasks)

	require.NoError(t, err)
	assert.Equal(t, ModeFirstMatch, plan.Mode)
	assert.Equal(t, 4.0, plan.Total)
	assert.Equal(t, []string{"long"}, names(plan.Tasks))
}

func TestMaximizeDuration_BackToBackTasksDoNotConflict(t *testing.T) {
	tasks := []task.Task{
		{Name: "first", Category: task.CategoryAcademic, StartTime: 0, Deadline: 5, Duration: 5},
		{Name: "second", Category: task.CategoryAcademic, StartTime: 5, Deadline: 8, Duration: 3},
	}

	total, err := MaximizeDuration(tasks)

	require.NoError(t, err)
	assert.Equal(t, 8.0, total)
}

func TestMaximizeDuration_InvariantToInputOrder(t *testing.T) {
	for _, perm := range permutations(sampleTasks()) {
		total, err := MaximizeDuration(perm)

		require.NoError(t, err)
		assert.Equal(t, 9.0, total, "order %v", names(perm))
	}

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 100; round++ {
		tasks := randomTasks(rng, 1+rng.Intn(15))
		want, err := MaximizeDuration(tasks)
		require.NoError(t, err)

		shuffled := append([]task.Task(nil), tasks...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, err := MaximizeDuration(shuffled)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestMaximizeDuration_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for round := 0; round < 100; round++ {
		tasks := randomTasks(rng, 1+rng.Intn(12))
		before, err := MaximizeDuration(tasks)
		require.NoError(t, err)

		extra := randomTasks(rng, 1)[0]
		extra.Duration = float64(1 + rng.Intn(5))

		after, err := MaximizeDuration(append(tasks, extra))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, after, before)
	}
}

func TestOptimizer_PlanSelection(t *testing.T) {
	plan, err := Optimizer{Mode: ModeFirstMatch}.Maximize(sampleTasks())

	require.NoError(t, err)
	assert.Equal(t, 9.0, plan.Total)
	assert.Equal(t, []string{"Study OOP", "Gym", "Complete Assignment"}, names(plan.Tasks))
}

func TestOptimizer_PlanIsConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for round := 0; round < 100; round++ {
		tasks := randomTasks(rng, 1+rng.Intn(15))

		plan, err := Optimizer{}.Maximize(tasks)
		require.NoError(t, err)

		var sum float64
		for i, tsk := range plan.Tasks {
			sum += tsk.Duration
			if i > 0 {
				assert.LessOrEqual(t, plan.Tasks[i-1].Deadline, tsk.StartTime, "selected tasks must not conflict")
			}
		}
		assert.Equal(t, plan.Total, sum)
	}
}

func TestOptimizer_StrictAgreesWithFirstMatch(t *testing.T) {
	rng := rand.New(rand.NewSource(99))

	for round := 0; round < 200; round++ {
		tasks := randomTasks(rng, 1+rng.Intn(20))

		first, err := Optimizer{Mode: ModeFirstMatch}.Maximize(tasks)
		require.NoError(t, err)
		strict, err := Optimizer{Mode: ModeStrict}.Maximize(tasks)
		require.NoError(t, err)

		assert.Equal(t, first.Total, strict.Total)
		assert.Equal(t, ModeStrict, strict.Mode)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input    string
		expected Mode
		wantErr  bool
	}{
		{input: "", expected: ModeFirstMatch},
		{input: "first-match", expected: ModeFirstMatch},
		{input: "strict", expected: ModeStrict},
		{input: "greedy", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseMode(tt.input)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mode)
		})
	}
}
