package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/task"
)

type taskRepository struct {
	db *DB
}

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	t.ID = repo.db.nextPK()
	repo.db.tasks[t.ID] = &t
	return t, nil
}

func (repo *taskRepository) CreateTasks(ctx context.Context, ts []task.Task) ([]task.Task, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	created := make([]task.Task, 0, len(ts))
	for _, t := range ts {
		t := t
		t.ID = repo.db.nextPK()
		repo.db.tasks[t.ID] = &t
		created = append(created, t)
	}
	return created, nil
}

func (repo *taskRepository) QueryTasks(ctx context.Context, filter task.QueryFilter, orderings []core.DBOrdering) ([]task.Task, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tasks := make([]task.Task, 0)
	for _, t := range repo.db.tasks {
		if matches(t, filter) {
			tasks = append(tasks, *t)
		}
	}
	sortTasks(tasks, orderings)
	return tasks, nil
}

func matches(t *task.Task, filter task.QueryFilter) bool {
	switch {
	case t.UserID != filter.UserID:
		return false
	case !filter.DueFrom.IsZero() && t.DueDate.Before(filter.DueFrom):
		return false
	case !filter.DueTo.IsZero() && !t.DueDate.Before(filter.DueTo):
		return false
	case filter.Status != "" && t.Status != filter.Status:
		return false
	case filter.ClassID.Valid && t.ClassID != filter.ClassID:
		return false
	}
	return true
}

// sortTasks supports ordering by due_date & created_at; soonest due first by default.
func sortTasks(tasks []task.Task, orderings []core.DBOrdering) {
	ord := core.DBOrdering{Field: "due_date", Ascending: true}
	for _, o := range orderings {
		if o.Field == "due_date" || o.Field == "created_at" {
			ord = o
			break
		}
	}
	key := func(t task.Task) int64 {
		if ord.Field == "created_at" {
			return t.CreatedAt.UnixNano()
		}
		return t.DueDate.UnixNano()
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		ki, kj := key(tasks[i]), key(tasks[j])
		if ki == kj {
			return tasks[i].ID < tasks[j].ID
		}
		if ord.Ascending {
			return ki < kj
		}
		return ki > kj
	})
}

func (repo *taskRepository) GetTask(ctx context.Context, userID, id int64) (task.Task, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if t, ok := repo.db.tasks[id]; ok && t.UserID == userID {
		return *t, nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.tasks[t.ID]
	if !ok || orig.UserID != t.UserID {
		return task.Task{}, task.ErrNotFound
	}
	t.CreatedAt = orig.CreatedAt
	repo.db.tasks[t.ID] = &t
	return t, nil
}

// DeleteTasks silently skips tasks the user does not own.
func (repo *taskRepository) DeleteTasks(ctx context.Context, userID int64, ids ...int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, id := range ids {
		if t, ok := repo.db.tasks[id]; ok && t.UserID == userID {
			delete(repo.db.tasks, id)
		}
	}
	return nil
}
