// Package schedule implements ordering, deadline lookup and duration maximization over task snapshots.
// Every function borrows its input and returns new values; no task or input slice is modified.
package schedule

import "github.com/nadmax/taskplan/internal/task"

// Sort returns a copy of tasks ordered ascending by key. Equal keys keep their input order.
func Sort(tasks []task.Task, key task.Key) []task.Task {
	sorted := make([]task.Task, len(tasks))
	copy(sorted, tasks)
	if len(sorted) <= 1 {
		return sorted
	}

	buf := make([]task.Task, len(sorted))
	mergeSort(sorted, buf, key)
	return sorted
}

// SortBy resolves the attribute name, validates tasks and sorts by the key.
func SortBy(tasks []task.Task, keyName string) ([]task.Task, error) {
	key, err := task.ParseKey(keyName)
	if err != nil {
		return nil, err
	}
	if err := task.ValidateAll(tasks); err != nil {
		return nil, err
	}

	return Sort(tasks, key), nil
}

func mergeSort(tasks, buf []task.Task, key task.Key) {
	if len(tasks) <= 1 {
		return
	}

	mid := len(tasks) / 2
	mergeSort(tasks[:mid], buf[:mid], key)
	mergeSort(tasks[mid:], buf[mid:], key)
	merge(tasks, mid, buf, key)
}

// merge combines the ascending runs tasks[:mid] and tasks[mid:] through buf.
func merge(tasks []task.Task, mid int, buf []task.Task, key task.Key) {
	copy(buf, tasks)
	left, right := buf[:mid], buf[mid:len(tasks)]

	i, j, k := 0, 0, 0
	for i < len(left) && j < len(right) {
		if key.Value(left[i]) <= key.Value(right[j]) {
			tasks[k] = left[i]
			i++
		} else {
			tasks[k] = right[j]
			j++
		}
		k++
	}

	k += copy(tasks[k:], left[i:])
	copy(tasks[k:], right[j:])
}
