package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/task"
)

const taskColumns = `id, user_id, class_id, title, description, due_date, type, priority, estimated_hours, status, created_at, updated_at`

const insertTask = `INSERT INTO tasks
	(user_id, class_id, title, description, due_date, type, priority, estimated_hours, status, created_at, updated_at)
	VALUES (:user_id, :class_id, :title, :description, :due_date, :type, :priority, :estimated_hours, :status, :created_at, :updated_at)
	RETURNING id`

var taskOrderings = map[string]bool{"due_date": true, "created_at": true, "priority": true, "title": true}

type taskRepository struct {
	db *sqlx.DB
}

func NewTaskRepository(db *sqlx.DB) task.Repository {
	return &taskRepository{db: db}
}

func insert(ctx context.Context, q sqlx.ExtContext, t task.Task) (task.Task, error) {
	query, args, err := sqlx.Named(insertTask, t)
	if err != nil {
		return task.Task{}, wrapErr(err, "binding task")
	}
	err = q.QueryRowxContext(ctx, q.Rebind(query), args...).Scan(&t.ID)
	return t, wrapErr(err, "inserting task")
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	return insert(ctx, repo.db, t)
}

func (repo *taskRepository) CreateTasks(ctx context.Context, ts []task.Task) ([]task.Task, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapErr(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	created := make([]task.Task, 0, len(ts))
	for _, t := range ts {
		t, err = insert(ctx, tx, t)
		if err != nil {
			return nil, err
		}
		created = append(created, t)
	}
	if err = tx.Commit(); err != nil {
		return nil, wrapErr(err, "committing tasks")
	}
	return created, nil
}

// buildTaskQuery renders the filter as a SELECT with positional arguments.
func buildTaskQuery(filter task.QueryFilter, orderings []core.DBOrdering) (string, []interface{}) {
	where := []string{"user_id = $1"}
	args := []interface{}{filter.UserID}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !filter.DueFrom.IsZero() {
		add("due_date >= $%d", filter.DueFrom)
	}
	if !filter.DueTo.IsZero() {
		add("due_date < $%d", filter.DueTo)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.ClassID.Valid {
		add("class_id = $%d", filter.ClassID.Int64)
	}

	orderBy := core.OrderByClause(orderings, taskOrderings, core.DBOrdering{Field: "due_date", Ascending: true})
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ` + orderBy + `, id ASC`
	return q, args
}

func (repo *taskRepository) QueryTasks(ctx context.Context, filter task.QueryFilter, orderings []core.DBOrdering) ([]task.Task, error) {
	q, args := buildTaskQuery(filter, orderings)
	tasks := make([]task.Task, 0)
	err := repo.db.SelectContext(ctx, &tasks, q, args...)
	return tasks, wrapErr(err, "querying tasks")
}

func (repo *taskRepository) GetTask(ctx context.Context, userID, id int64) (task.Task, error) {
	var t task.Task
	err := repo.db.GetContext(ctx, &t, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err == sql.ErrNoRows {
		return task.Task{}, task.ErrNotFound
	}
	return t, wrapErr(err, "getting task")
}

func (repo *taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	q := `UPDATE tasks SET class_id = :class_id, title = :title, description = :description, due_date = :due_date,
		type = :type, priority = :priority, estimated_hours = :estimated_hours, status = :status, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id`
	res, err := repo.db.NamedExecContext(ctx, q, t)
	if err != nil {
		return task.Task{}, wrapErr(err, "updating task")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return task.Task{}, task.ErrNotFound
	}
	return t, nil
}

func (repo *taskRepository) DeleteTasks(ctx context.Context, userID int64, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = $1 AND id = ANY($2)`, userID, pq.Array(ids))
	return wrapErr(err, "deleting tasks")
}
