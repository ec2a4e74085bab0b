// Package task defines the task lifecycle model. Status transitions are
// enforced by the tasks service; expiry is derived lazily from the due date
// rather than mutated by a background timer.
package task

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusAvailable       Status = "available"
	StatusClaimed         Status = "claimed"
	StatusPendingApproval Status = "pendingApproval"
	StatusCompleted       Status = "completed"
	StatusExpired         Status = "expired"
)

// ParseStatus decodes a stored status value.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusAvailable, StatusClaimed, StatusPendingApproval, StatusCompleted, StatusExpired:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("unknown task status %q", raw)
	}
}

// Frequency controls recurring-task spawning on completion.
type Frequency string

const (
	FrequencyOnce    Frequency = "once"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency decodes a stored frequency value.
func ParseFrequency(raw string) (Frequency, error) {
	switch Frequency(raw) {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return Frequency(raw), nil
	default:
		return "", fmt.Errorf("unknown task frequency %q", raw)
	}
}

// NextDue advances a due date by one frequency interval.
func (f Frequency) NextDue(from time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from
	}
}

// Task is a unit of work worth points.
type Task struct {
	ID            string
	FamilyID      string
	Title         string
	PointValue    int64
	AssigneeID    string
	Frequency     Frequency
	Status        Status
	DueDate       time.Time
	RequiresProof bool
	Proof         string
	LastCompleted time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EffectiveStatus derives the status visible at read time: an available or
// claimed task past its due date reads back as expired without a stored
// transition.
func (t Task) EffectiveStatus(now time.Time) Status {
	switch t.Status {
	case StatusAvailable, StatusClaimed:
		if !t.DueDate.IsZero() && now.After(t.DueDate) {
			return StatusExpired
		}
	}
	return t.Status
}
