package types

import "fmt"

// TaskPriority represents how urgent a task is
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// IsValid checks if the priority is valid
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow,
		TaskPriorityMedium,
		TaskPriorityHigh,
		TaskPriorityUrgent:
		return true
	default:
		return false
	}
}

// Normalize returns the priority, treating empty as TaskPriorityMedium
func (p TaskPriority) Normalize() TaskPriority {
	if p == "" {
		return TaskPriorityMedium
	}
	return p
}

// Rank orders priorities from low (0) to urgent (3). Unknown values rank -1.
func (p TaskPriority) Rank() int {
	switch p {
	case TaskPriorityLow:
		return 0
	case TaskPriorityMedium:
		return 1
	case TaskPriorityHigh:
		return 2
	case TaskPriorityUrgent:
		return 3
	default:
		return -1
	}
}

func (p TaskPriority) String() string {
	return string(p)
}

// ParseTaskPriority parses a string into a TaskPriority
func ParseTaskPriority(s string) (TaskPriority, error) {
	p := TaskPriority(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid task priority: %s", s)
	}
	return p, nil
}
