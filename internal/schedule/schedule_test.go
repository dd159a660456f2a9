package schedule

import (
	"math/rand"

	"github.com/nadmax/taskplan/internal/task"
)

func sampleTasks() []task.Task {
	return []task.Task{
		{Name: "Study OOP", Category: task.CategoryAcademic, Deadline: 10, StartTime: 2, Duration: 3, Priority: 1},
		{Name: "Gym", Category: task.CategoryPersonal, Deadline: 15, StartTime: 12, Duration: 2, Priority: 2},
		{Name: "Complete Assignment", Category: task.CategoryAcademic, Deadline: 20, StartTime: 16, Duration: 4, Priority: 1},
		{Name: "Grocery Shopping", Category: task.CategoryPersonal, Deadline: 8, StartTime: 1, Duration: 1, Priority: 3},
	}
}

func names(tasks []task.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Name
	}
	return out
}

// randomTasks builds valid tasks with integral times so sums stay exact.
func randomTasks(rng *rand.Rand, n int) []task.Task {
	tasks := make([]task.Task, n)
	for i := range tasks {
		start := float64(rng.Intn(40))
		category := task.CategoryPersonal
		if rng.Intn(2) == 0 {
			category = task.CategoryAcademic
		}
		tasks[i] = task.Task{
			Name:      string(rune('a' + i%26)),
			Category:  category,
			StartTime: start,
			Deadline:  start + float64(rng.Intn(10)),
			Duration:  float64(rng.Intn(6)),
			Priority:  rng.Intn(4),
		}
	}
	return tasks
}

func permutations(tasks []task.Task) [][]task.Task {
	if len(tasks) <= 1 {
		return [][]task.Task{append([]task.Task(nil), tasks...)}
	}

	var out [][]task.Task
	for i := range tasks {
		rest := make([]task.Task, 0, len(tasks)-1)
		rest = append(rest, tasks[:i]...)
		rest = append(rest, tasks[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]task.Task{tasks[i]}, p...))
		}
	}
	return out
}
