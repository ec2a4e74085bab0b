// Package tasks implements the task lifecycle: claiming, completion with
// optional proof review, point awards through the ledger, and recurring
// spawning.
package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/familygrove/engine/internal/app/domain/ledger"
	"github.com/familygrove/engine/internal/app/domain/member"
	"github.com/familygrove/engine/internal/app/domain/task"
	"github.com/familygrove/engine/internal/app/events"
	ledgersvc "github.com/familygrove/engine/internal/app/services/ledger"
	"github.com/familygrove/engine/internal/app/storage"
	apperr "github.com/familygrove/engine/internal/errors"
	"github.com/familygrove/engine/pkg/logger"
)

// Service manages tasks.
type Service struct {
	members storage.MemberStore
	store   storage.Store
	ledger  *ledgersvc.Service
	bus     *events.Bus
	log     *logger.Logger
	now     func() time.Time
}

// New constructs a tasks service. The ledger service provides per-account
// locking so a completion award serializes with other balance changes.
func New(members storage.MemberStore, store storage.Store, ledger *ledgersvc.Service, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tasks")
	}
	return &Service{
		members: members,
		store:   store,
		ledger:  ledger,
		bus:     bus,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) publish(t events.Type, tk task.Task, accountID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:      t,
		FamilyID:  tk.FamilyID,
		AccountID: accountID,
		EntityID:  tk.ID,
		Payload:   map[string]string{"status": string(tk.Status), "title": tk.Title},
	})
}

// Create registers a new task.
func (s *Service) Create(ctx context.Context, familyID, title string, pointValue int64, assigneeID, frequency string, dueDate time.Time, requiresProof bool) (task.Task, error) {
	familyID = strings.TrimSpace(familyID)
	title = strings.TrimSpace(title)

	if familyID == "" {
		return task.Task{}, apperr.Validation("family id is required")
	}
	if title == "" {
		return task.Task{}, apperr.Validation("title is required")
	}
	if pointValue <= 0 {
		return task.Task{}, apperr.Validation("point value must be positive")
	}
	freq, err := task.ParseFrequency(frequency)
	if err != nil {
		return task.Task{}, apperr.Validation("frequency must be one of once, daily, weekly, monthly")
	}
	if assigneeID != "" && s.members != nil {
		if _, err := s.members.GetMember(ctx, assigneeID); err != nil {
			return task.Task{}, err
		}
	}

	created, err := s.store.CreateTask(ctx, task.Task{
		FamilyID:      familyID,
		Title:         title,
		PointValue:    pointValue,
		AssigneeID:    assigneeID,
		Frequency:     freq,
		Status:        task.StatusAvailable,
		DueDate:       dueDate,
		RequiresProof: requiresProof,
	})
	if err != nil {
		return task.Task{}, err
	}

	s.log.WithField("task_id", created.ID).
		WithField("family_id", familyID).
		WithField("points", pointValue).
		Info("task created")
	s.publish(events.TypeTaskCreated, created, assigneeID)
	return created, nil
}

// Claim assigns an available task to a member. An unassigned task may be
// claimed by anyone; a pre-assigned task only by its assignee.
func (s *Service) Claim(ctx context.Context, taskID, memberID string) (task.Task, error) {
	if s.members != nil {
		if _, err := s.members.GetMember(ctx, memberID); err != nil {
			return task.Task{}, err
		}
	}

	now := s.now()
	var updated task.Task
	err := s.store.RunAtomically(ctx, func(st storage.Tx) error {
		t, err := st.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if status := t.EffectiveStatus(now); status != task.StatusAvailable {
			return apperr.InvalidStateTransition("task", string(status), string(task.StatusClaimed))
		}
		if t.AssigneeID != "" && t.AssigneeID != memberID {
			return apperr.InvalidStateTransition("task", string(task.StatusAvailable), string(task.StatusClaimed))
		}

		t.AssigneeID = memberID
		t.Status = task.StatusClaimed
		updated, err = st.UpdateTask(ctx, t)
		return err
	})
	if err != nil {
		return task.Task{}, err
	}

	s.log.WithField("task_id", taskID).WithField("member_id", memberID).Info("task claimed")
	s.publish(events.TypeTaskClaimed, updated, memberID)
	return updated, nil
}

// Unclaim releases a claimed task back to the family pool. Only the claimant
// may release it.
func (s *Service) Unclaim(ctx context.Context, taskID, memberID string) (task.Task, error) {
	now := s.now()
	var updated task.Task
	err := s.store.RunAtomically(ctx, func(st storage.Tx) error {
		t, err := st.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if status := t.EffectiveStatus(now); status != task.StatusClaimed {
			return apperr.InvalidStateTransition("task", string(status), string(task.StatusAvailable))
		}
		if t.AssigneeID != memberID {
			return apperr.Validation("task is claimed by another member")
		}

		t.AssigneeID = ""
		t.Status = task.StatusAvailable
		updated, err = st.UpdateTask(ctx, t)
		return err
	})
	if err != nil {
		return task.Task{}, err
	}

	s.log.WithField("task_id", taskID).WithField("member_id", memberID).Info("task released")
	s.publish(events.TypeTaskUnclaimed, updated, memberID)
	return updated, nil
}

// Complete finishes a claimed task. When the task requires proof and none is
// supplied it parks in pendingApproval for a parent to review; otherwise it
// completes immediately and awards the points.
func (s *Service) Complete(ctx context.Context, taskID, memberID, proof string) (task.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return task.Task{}, err
	}

	now := s.now()
	if status := t.EffectiveStatus(now); status != task.StatusClaimed {
		return task.Task{}, apperr.InvalidStateTransition("task", string(status), string(task.StatusCompleted))
	}
	if t.AssigneeID != memberID {
		return task.Task{}, apperr.Validation("task is claimed by another member")
	}

	proof = strings.TrimSpace(proof)
	if t.RequiresProof && proof == "" {
		t.Status = task.StatusPendingApproval
		updated, err := s.store.UpdateTask(ctx, t)
		if err != nil {
			return task.Task{}, err
		}
		s.log.WithField("task_id", taskID).WithField("member_id", memberID).Info("task awaiting approval")
		s.publish(events.TypeTaskPendingApproval, updated, memberID)
		return updated, nil
	}

	return s.finish(ctx, taskID, memberID, proof, task.StatusClaimed, now)
}

// Approve moves a pendingApproval task to completed and awards the points.
// Only parents approve. Approving an already-completed task fails without a
// second award.
func (s *Service) Approve(ctx context.Context, taskID, approverID string) (task.Task, error) {
	if s.members != nil {
		approver, err := s.members.GetMember(ctx, approverID)
		if err != nil {
			return task.Task{}, err
		}
		if approver.Role != member.RoleParent {
			return task.Task{}, apperr.Validation("only a parent can approve a task")
		}
	}

	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return task.Task{}, err
	}

	now := s.now()
	if status := t.EffectiveStatus(now); status != task.StatusPendingApproval {
		return task.Task{}, apperr.InvalidStateTransition("task", string(status), string(task.StatusCompleted))
	}

	completed, err := s.finish(ctx, taskID, t.AssigneeID, "", task.StatusPendingApproval, now)
	if err != nil {
		return task.Task{}, err
	}
	s.publish(events.TypeTaskApproved, completed, t.AssigneeID)
	return completed, nil
}

// finish transitions a task to completed, awards the points, and spawns the
// next occurrence for recurring tasks, all in one atomic block bracketed by
// the assignee's account lock. The task is re-read and the transition
// re-verified inside the block, so two racing finishers cannot both award.
func (s *Service) finish(ctx context.Context, taskID, accountID, proof string, from task.Status, now time.Time) (task.Task, error) {
	var completed task.Task
	var spawned *task.Task
	err := s.ledger.WithAccount(func() error {
		return s.store.RunAtomically(ctx, func(st storage.Tx) error {
			t, err := st.GetTask(ctx, taskID)
			if err != nil {
				return err
			}
			if status := t.EffectiveStatus(now); status != from {
				return apperr.InvalidStateTransition("task", string(status), string(task.StatusCompleted))
			}
			if t.AssigneeID != accountID {
				return apperr.Validation("task is claimed by another member")
			}

			if proof != "" {
				t.Proof = proof
			}
			t.Status = task.StatusCompleted
			t.LastCompleted = now

			completed, err = st.UpdateTask(ctx, t)
			if err != nil {
				return err
			}
			if _, err = ledgersvc.Append(ctx, st, ledger.Transaction{
				AccountID:     accountID,
				Kind:          ledger.KindEarned,
				Amount:        t.PointValue,
				Reason:        "Completed: " + t.Title,
				RelatedTaskID: t.ID,
			}); err != nil {
				return err
			}

			if t.Frequency != task.FrequencyOnce {
				base := t.DueDate
				if base.IsZero() {
					base = now
				}
				next, err := st.CreateTask(ctx, task.Task{
					FamilyID:      t.FamilyID,
					Title:         t.Title,
					PointValue:    t.PointValue,
					AssigneeID:    t.AssigneeID,
					Frequency:     t.Frequency,
					Status:        task.StatusAvailable,
					DueDate:       t.Frequency.NextDue(base),
					RequiresProof: t.RequiresProof,
				})
				if err != nil {
					return err
				}
				spawned = &next
			}
			return nil
		})
	}, accountID)
	if err != nil {
		return task.Task{}, err
	}

	s.log.WithField("task_id", completed.ID).
		WithField("member_id", accountID).
		WithField("points", completed.PointValue).
		Info("task completed")
	s.publish(events.TypeTaskCompleted, completed, accountID)
	if spawned != nil {
		s.publish(events.TypeTaskSpawned, *spawned, spawned.AssigneeID)
	}
	return completed, nil
}

// Get returns a task with its effective status at read time.
func (s *Service) Get(ctx context.Context, taskID string) (task.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return task.Task{}, err
	}
	t.Status = t.EffectiveStatus(s.now())
	return t, nil
}

// List returns a family's tasks with effective statuses.
func (s *Service) List(ctx context.Context, familyID string) ([]task.Task, error) {
	list, err := s.store.ListTasks(ctx, familyID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range list {
		list[i].Status = list[i].EffectiveStatus(now)
	}
	return list, nil
}

// ListForMember returns the tasks assigned to one member with effective
// statuses.
func (s *Service) ListForMember(ctx context.Context, memberID string) ([]task.Task, error) {
	list, err := s.store.ListTasksByAssignee(ctx, memberID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range list {
		list[i].Status = list[i].EffectiveStatus(now)
	}
	return list, nil
}
