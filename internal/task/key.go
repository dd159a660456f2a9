package task

import (
	"errors"
	"fmt"
)

// Key selects the numeric attribute tasks are ordered by.
type Key int

const (
	KeyDeadline Key = iota
	KeyPriority
	KeyStartTime
	KeyDuration
)

var ErrUnknownKey = errors.New("unknown sort key")

func ParseKey(name string) (Key, error) {
	switch name {
	case "deadline":
		return KeyDeadline, nil
	case "priority":
		return KeyPriority, nil
	case "start_time":
		return KeyStartTime, nil
	case "duration":
		return KeyDuration, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
}

func (k Key) String() string {
	switch k {
	case KeyDeadline:
		return "deadline"
	case KeyPriority:
		return "priority"
	case KeyStartTime:
		return "start_time"
	case KeyDuration:
		return "duration"
	default:
		return "unknown"
	}
}

// Value returns the attribute of t selected by k.
func (k Key) Value(t Task) float64 {
	switch k {
	case KeyPriority:
		return float64(t.Priority)
	case KeyStartTime:
		return t.StartTime
	case KeyDuration:
		return t.Duration
	default:
		return t.Deadline
	}
}
