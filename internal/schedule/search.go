package schedule

import (
	"fmt"

	"github.com/nadmax/taskplan/internal/task"
)

// FindByDeadline returns the first task whose deadline equals target.
// tasks must be valid and sorted ascending by deadline, otherwise
// task.ErrInvalidTask or ErrNotSorted is returned.
func FindByDeadline(tasks []task.Task, target float64) (task.Task, bool, error) {
	if err := task.ValidateAll(tasks); err != nil {
		return task.Task{}, false, err
	}
	if err := checkSortedByDeadline(tasks); err != nil {
		return task.Task{}, false, err
	}

	index := lowerBound(tasks, target)
	if index < len(tasks) && tasks[index].Deadline == target {
		return tasks[index], true, nil
	}

	return task.Task{}, false, nil
}

func checkSortedByDeadline(tasks []task.Task) error {
	for i := 1; i < len(tasks); i++ {
		if tasks[i].Deadline < tasks[i-1].Deadline {
			return fmt.Errorf("%w: deadline %g at index %d follows %g", ErrNotSorted,
				tasks[i].Deadline, i, tasks[i-1].Deadline)
		}
	}

	return nil
}

// lowerBound is the first index whose deadline is >= target.
func lowerBound(tasks []task.Task, target float64) int {
	lo, hi := 0, len(tasks)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if tasks[mid].Deadline < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	return lo
}
