package task

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/trackademic/core"
)

var ErrNotFound = errors.New("task not found")

type (
	// Repository lookups are always scoped by the owner's ID; a Task owned by someone else is ErrNotFound.
	Repository interface {
		CreateTask(ctx context.Context, t Task) (Task, error)
		// CreateTasks is all-or-nothing.
		CreateTasks(ctx context.Context, ts []Task) ([]Task, error)
		QueryTasks(ctx context.Context, filter QueryFilter, orderings []core.DBOrdering) ([]Task, error)
		GetTask(ctx context.Context, userID, id int64) (Task, error)
		UpdateTask(ctx context.Context, t Task) (Task, error)
		DeleteTasks(ctx context.Context, userID int64, ids ...int64) error
	}

	Service struct {
		repo    Repository
		dueTime time.Duration
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{repo: repo, dueTime: conf.Syllabus.DueTime}
}

// Build turns a validated NewTask into a Task owned by userID.
func (svc *Service) Build(userID int64, nt NewTask) (Task, error) {
	due, err := ParseDueDate(nt.DueDate, svc.dueTime)
	if err != nil {
		return Task{}, err
	}
	now := time.Now().UTC()
	return Task{
		UserID:         userID,
		ClassID:        nt.ClassID.Int64,
		Title:          nt.Title,
		Description:    nt.Description,
		DueDate:        due,
		Type:           nt.Type,
		Priority:       nt.Priority,
		EstimatedHours: nt.EstimatedHours,
		Status:         nt.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (svc *Service) Create(ctx context.Context, userID int64, nt NewTask) (Task, error) {
	t, err := svc.Build(userID, nt)
	if err != nil {
		return Task{}, err
	}
	return svc.repo.CreateTask(ctx, t)
}

// CreateBatch creates all tasks or none.
func (svc *Service) CreateBatch(ctx context.Context, userID int64, nts []NewTask) ([]Task, error) {
	ts := make([]Task, 0, len(nts))
	for _, nt := range nts {
		t, err := svc.Build(userID, nt)
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}
	if len(ts) == 0 {
		return []Task{}, nil
	}
	return svc.repo.CreateTasks(ctx, ts)
}

// Insert stores an already built Task.
func (svc *Service) Insert(ctx context.Context, t Task) (Task, error) {
	return svc.repo.CreateTask(ctx, t)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, orderings []core.DBOrdering) ([]Task, error) {
	return svc.repo.QueryTasks(ctx, filter, orderings)
}

// QueryByDate returns the user's tasks due on `day` (UTC), soonest first.
func (svc *Service) QueryByDate(ctx context.Context, userID int64, day time.Time) ([]Task, error) {
	from := core.StartOfDay(day.UTC())
	return svc.repo.QueryTasks(ctx, QueryFilter{
		UserID:  userID,
		DueFrom: from,
		DueTo:   from.AddDate(0, 0, 1),
	}, []core.DBOrdering{{Field: "due_date", Ascending: true}})
}

// QueryDueSoon returns the user's unfinished tasks due between now and now+within.
func (svc *Service) QueryDueSoon(ctx context.Context, userID int64, now time.Time, within time.Duration) ([]Task, error) {
	ts, err := svc.repo.QueryTasks(ctx, QueryFilter{
		UserID:  userID,
		DueFrom: now,
		DueTo:   now.Add(within),
	}, []core.DBOrdering{{Field: "due_date", Ascending: true}})
	if err != nil {
		return nil, err
	}
	soon := ts[:0]
	for _, t := range ts {
		if t.Status != StatusCompleted {
			soon = append(soon, t)
		}
	}
	return soon, nil
}

func (svc *Service) Get(ctx context.Context, userID, id int64) (Task, error) {
	return svc.repo.GetTask(ctx, userID, id)
}

func (svc *Service) Update(ctx context.Context, t Task, ut UpdateTask) (Task, error) {
	if ut.Title != nil {
		t.Title = *ut.Title
	}
	if ut.Description != nil {
		t.Description = *ut.Description
	}
	if ut.DueDate != nil {
		due, err := ParseDueDate(*ut.DueDate, svc.dueTime)
		if err != nil {
			return Task{}, err
		}
		t.DueDate = due
	}
	if ut.Type != nil {
		t.Type = *ut.Type
	}
	if ut.Priority != nil {
		t.Priority = *ut.Priority
	}
	if ut.EstimatedHours != nil {
		t.EstimatedHours = *ut.EstimatedHours
	}
	if ut.Status != nil {
		t.Status = *ut.Status
	}
	if ut.ClassID != nil {
		t.ClassID = ut.ClassID.Int64
	}
	t.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTask(ctx, t)
}

func (svc *Service) Delete(ctx context.Context, userID int64, ids ...int64) error {
	return svc.repo.DeleteTasks(ctx, userID, ids...)
}
