package schedule

import (
	"fmt"
	"sort"

	"github.com/nadmax/taskplan/internal/task"
)

type Mode string

const (
	// ModeFirstMatch pairs each task with the nearest preceding task that
	// finishes by its start, found by a backward linear scan.
	ModeFirstMatch Mode = "first-match"
	// ModeStrict is textbook weighted interval scheduling: the latest
	// compatible predecessor is found by binary search over deadlines.
	ModeStrict Mode = "strict"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFirstMatch:
		return ModeFirstMatch, nil
	case ModeStrict:
		return ModeStrict, nil
	default:
		return "", fmt.Errorf("unknown optimizer mode %q", s)
	}
}

// Plan is the outcome of a maximization: the best total duration and one
// selection of mutually non-conflicting tasks achieving it, in deadline order.
type Plan struct {
	Mode  Mode        `json:"mode"`
	Total float64     `json:"total"`
	Tasks []task.Task `json:"tasks"`
}

type Optimizer struct {
	Mode Mode
}

// MaximizeDuration returns the maximum total duration of tasks that can be
// taken without conflict, using the first-match recurrence.
func MaximizeDuration(tasks []task.Task) (float64, error) {
	plan, err := Optimizer{Mode: ModeFirstMatch}.Maximize(tasks)
	if err != nil {
		return 0, err
	}

	return plan.Total, nil
}

func (o Optimizer) Maximize(tasks []task.Task) (Plan, error) {
	if len(tasks) == 0 {
		return Plan{}, ErrEmptyInput
	}
	if err := task.ValidateAll(tasks); err != nil {
		return Plan{}, err
	}

	mode := o.Mode
	if mode == "" {
		mode = ModeFirstMatch
	}

	sorted := Sort(tasks, task.KeyDeadline)
	n := len(sorted)

	dp := make([]float64, n)
	prev := make([]int, n)
	take := make([]bool, n)

	dp[0] = sorted[0].Duration
	prev[0] = -1
	take[0] = true

	for i := 1; i < n; i++ {
		include := sorted[i].Duration

		var j int
		if mode == ModeStrict {
			j = latestCompatible(sorted, i)
		} else {
			j = firstCompatible(sorted, i)
		}
		if j != -1 {
			include += dp[j]
		}
		prev[i] = j

		if include > dp[i-1] {
			dp[i] = include
			take[i] = true
		} else {
			dp[i] = dp[i-1]
		}
	}

	return Plan{
		Mode:  mode,
		Total: dp[n-1],
		Tasks: selection(sorted, prev, take),
	}, nil
}

// firstCompatible scans backward from i-1 and stops at the first task that
// finishes by the start of task i. Returns -1 when there is none.
func firstCompatible(sorted []task.Task, i int) int {
	for j := i - 1; j >= 0; j-- {
		if sorted[j].Deadline <= sorted[i].StartTime {
			return j
		}
	}

	return -1
}

func latestCompatible(sorted []task.Task, i int) int {
	start := sorted[i].StartTime
	return sort.Search(i, func(k int) bool {
		return sorted[k].Deadline > start
	}) - 1
}

func selection(sorted []task.Task, prev []int, take []bool) []task.Task {
	var picked []task.Task
	for i := len(sorted) - 1; i >= 0; {
		if !take[i] {
			i--
			continue
		}
		picked = append(picked, sorted[i])
		i = prev[i]
	}

	for l, r := 0, len(picked)-1; l < r; l, r = l+1, r-1 {
		picked[l], picked[r] = picked[r], picked[l]
	}

	return picked
}
