// Package render draws task schedules as text Gantt charts.
package render

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nadmax/taskplan/internal/task"
)

const (
	DefaultWidth = 60

	barRune = "█"
	title   = "Task Schedule Gantt Chart"
)

var categoryColors = map[task.Category]lipgloss.Color{
	task.CategoryPersonal: lipgloss.Color("#87CEEB"),
	task.CategoryAcademic: lipgloss.Color("#FFA500"),
}

// Gantt writes one bar per task spanning [start, start+duration) on a timeline
// DefaultWidth columns wide.
func Gantt(w io.Writer, tasks []task.Task) error {
	return NewChart(w, DefaultWidth).Render(tasks)
}

type Chart struct {
	out      io.Writer
	width    int
	renderer *lipgloss.Renderer
}

// NewChart colours output only when w is a terminal that supports it.
func NewChart(w io.Writer, width int) *Chart {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Chart{out: w, width: width, renderer: lipgloss.NewRenderer(w)}
}

func (c *Chart) Render(tasks []task.Task) error {
	var b strings.Builder

	b.WriteString(c.renderer.NewStyle().Bold(true).Render(title))
	b.WriteString("\n\n")

	if len(tasks) == 0 {
		b.WriteString("(no tasks)\n")
		_, err := io.WriteString(c.out, b.String())
		return err
	}

	labelWidth := len("Tasks")
	horizon := 0.0
	for _, t := range tasks {
		labelWidth = max(labelWidth, lipgloss.Width(t.Name))
		horizon = max(horizon, t.StartTime+t.Duration)
	}
	if horizon <= 0 {
		horizon = 1
	}
	scale := float64(c.width) / horizon

	fmt.Fprintf(&b, "%-*s\n", labelWidth, "Tasks")
	for _, t := range tasks {
		offset, length := c.span(t, scale)
		bar := c.styleFor(t.Category).Render(strings.Repeat(barRune, length))
		fmt.Fprintf(&b, "%-*s │%s%s\n", labelWidth, t.Name, strings.Repeat(" ", offset), bar)
	}

	pad := strings.Repeat(" ", labelWidth)
	fmt.Fprintf(&b, "%s └%s\n", pad, strings.Repeat("─", c.width))

	end := strconv.FormatFloat(horizon, 'g', -1, 64)
	gap := max(1, c.width-1-len(end))
	fmt.Fprintf(&b, "%s  0%s%s\n", pad, strings.Repeat(" ", gap), end)

	label := "Time"
	fmt.Fprintf(&b, "%s  %s%s\n", pad, strings.Repeat(" ", max(0, (c.width-len(label))/2)), label)

	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s   %s %s\n",
		c.styleFor(task.CategoryPersonal).Render(barRune), task.CategoryPersonal,
		c.styleFor(task.CategoryAcademic).Render(barRune), task.CategoryAcademic)

	_, err := io.WriteString(c.out, b.String())
	return err
}

// span converts a task's interval to column offset and bar length.
// Any positive duration gets at least one column.
func (c *Chart) span(t task.Task, scale float64) (int, int) {
	offset := int(math.Round(t.StartTime * scale))
	offset = min(max(offset, 0), c.width)

	length := int(math.Round(t.Duration * scale))
	if t.Duration > 0 && length == 0 {
		length = 1
	}
	length = min(length, c.width-offset)
	if t.Duration > 0 && length == 0 {
		offset, length = c.width-1, 1
	}

	return offset, max(length, 0)
}

func (c *Chart) styleFor(category task.Category) lipgloss.Style {
	style := c.renderer.NewStyle()
	if color, ok := categoryColors[category]; ok {
		style = style.Foreground(color)
	}
	return style
}
