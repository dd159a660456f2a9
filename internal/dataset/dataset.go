// Package dataset loads task snapshots from YAML or JSON files and provides the built-in sample.
package dataset

import (
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/nadmax/taskplan/internal/task"
)

type file struct {
	Tasks []task.Task `yaml:"tasks"`
}

// Sample is the four-task demonstration set.
func Sample() []task.Task {
	return []task.Task{
		{Name: "Study OOP", Category: task.CategoryAcademic, Deadline: 10, StartTime: 2, Duration: 3, Priority: 1},
		{Name: "Gym", Category: task.CategoryPersonal, Deadline: 15, StartTime: 12, Duration: 2, Priority: 2},
		{Name: "Complete Assignment", Category: task.CategoryAcademic, Deadline: 20, StartTime: 16, Duration: 4, Priority: 1},
		{Name: "Grocery Shopping", Category: task.CategoryPersonal, Deadline: 8, StartTime: 1, Duration: 1, Priority: 3},
	}
}

func LoadFile(path string) ([]task.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open task file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f)
}

// Decode reads either a top-level list of tasks or a document with a "tasks" list.
// JSON input is accepted since it is valid YAML.
func Decode(r io.Reader) ([]task.Task, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}
	if len(node.Content) == 0 {
		return []task.Task{}, nil
	}

	var tasks []task.Task
	switch node.Content[0].Kind {
	case yaml.SequenceNode:
		if err := node.Content[0].Decode(&tasks); err != nil {
			return nil, fmt.Errorf("decode tasks: %w", err)
		}
	case yaml.MappingNode:
		var doc file
		if err := node.Content[0].Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode tasks: %w", err)
		}
		tasks = doc.Tasks
	default:
		return nil, fmt.Errorf("decode tasks: unexpected document kind")
	}

	if tasks == nil {
		tasks = []task.Task{}
	}
	if err := task.ValidateAll(tasks); err != nil {
		return nil, err
	}

	return tasks, nil
}
