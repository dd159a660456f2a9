package schedule

import "errors"

var (
	ErrEmptyInput = errors.New("no tasks to schedule")
	ErrNotSorted  = errors.New("tasks are not sorted by deadline")
)
