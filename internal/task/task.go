// Package task defines the task record consumed by the scheduler, the renderer and the reminder dispatcher.
// It contains the category and attribute-key definitions, validation and serialization helpers.
package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

type (
	Category string
	Task     struct {
		Name      string   `json:"name" yaml:"name"`
		Category  Category `json:"category" yaml:"category"`
		Deadline  float64  `json:"deadline" yaml:"deadline"`
		StartTime float64  `json:"start_time" yaml:"start_time"`
		Duration  float64  `json:"duration" yaml:"duration"`
		Priority  int      `json:"priority" yaml:"priority"`
	}
)

const (
	CategoryPersonal Category = "personal"
	CategoryAcademic Category = "academic"
)

var ErrInvalidTask = errors.New("invalid task")

func New(name string, category Category, deadline, startTime, duration float64, priority int) (Task, error) {
	t := Task{
		Name:      name,
		Category:  category,
		Deadline:  deadline,
		StartTime: startTime,
		Duration:  duration,
		Priority:  priority,
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}

	return t, nil
}

func (c Category) Valid() bool {
	return c == CategoryPersonal || c == CategoryAcademic
}

// Validate reports whether the task has finite times, duration >= 0 and start <= deadline.
func (t Task) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTask)
	}
	if !t.Category.Valid() {
		return fmt.Errorf("%w: %q has unknown category %q", ErrInvalidTask, t.Name, t.Category)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"deadline", t.Deadline},
		{"start_time", t.StartTime},
		{"duration", t.Duration},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %q has non-finite %s %g", ErrInvalidTask, t.Name, f.name, f.value)
		}
	}
	if t.Duration < 0 {
		return fmt.Errorf("%w: %q has negative duration %g", ErrInvalidTask, t.Name, t.Duration)
	}
	if t.StartTime > t.Deadline {
		return fmt.Errorf("%w: %q starts at %g after its deadline %g", ErrInvalidTask, t.Name, t.StartTime, t.Deadline)
	}

	return nil
}

func (t Task) String() string {
	return fmt.Sprintf("%s | %s | Deadline: %g | Start: %g | Duration: %g | Priority: %d",
		t.Name, t.Category, t.Deadline, t.StartTime, t.Duration, t.Priority)
}

func (t Task) ToJSON() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func TaskFromJSON(data string) (Task, error) {
	var t Task
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return Task{}, err
	}

	return t, nil
}

// ValidateAll returns the first validation failure in tasks, annotated with its index.
func ValidateAll(tasks []Task) error {
	for i, t := range tasks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("task %d: %w", i, err)
		}
	}

	return nil
}
