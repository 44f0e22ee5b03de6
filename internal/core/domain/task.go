package domain

import "fmt"

// Task selects a classifier head.
type Task string

const (
	TaskAccount     Task = "account"
	TaskTransaction Task = "transaction"
)

// ParseTask validates a task identifier.
func ParseTask(s string) (Task, error) {
	switch Task(s) {
	case TaskAccount, TaskTransaction:
		return Task(s), nil
	}
	return "", fmt.Errorf("unknown task %q", s)
}
