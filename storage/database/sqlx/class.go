package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/trackademic/core/class"
)

const classColumns = `id, user_id, name, code, instructor, color, created_at, updated_at`

type classRepository struct {
	db *sqlx.DB
}

func NewClassRepository(db *sqlx.DB) class.Repository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	q := `INSERT INTO classes (user_id, name, code, instructor, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := repo.db.QueryRowxContext(ctx, q,
		cls.UserID, cls.Name, cls.Code, cls.Instructor, cls.Color, cls.CreatedAt, cls.UpdatedAt,
	).Scan(&cls.ID)
	return cls, wrapErr(err, "inserting class")
}

func (repo *classRepository) QueryClasses(ctx context.Context, userID int64) ([]class.Class, error) {
	classes := make([]class.Class, 0)
	err := repo.db.SelectContext(ctx, &classes, `SELECT `+classColumns+` FROM classes WHERE user_id = $1 ORDER BY name`, userID)
	return classes, wrapErr(err, "querying classes")
}

func (repo *classRepository) GetClass(ctx context.Context, userID, id int64) (class.Class, error) {
	var cls class.Class
	err := repo.db.GetContext(ctx, &cls, `SELECT `+classColumns+` FROM classes WHERE id = $1 AND user_id = $2`, id, userID)
	if err == sql.ErrNoRows {
		return class.Class{}, class.ErrNotFound
	}
	return cls, wrapErr(err, "getting class")
}

func (repo *classRepository) UpdateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	q := `UPDATE classes SET name = :name, code = :code, instructor = :instructor, color = :color, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id`
	res, err := repo.db.NamedExecContext(ctx, q, cls)
	if err != nil {
		return class.Class{}, wrapErr(err, "updating class")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return class.Class{}, class.ErrNotFound
	}
	return cls, nil
}

// DeleteClass relies on the tasks.class_id foreign key (ON DELETE SET NULL) to detach the tasks.
func (repo *classRepository) DeleteClass(ctx context.Context, userID, id int64) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return wrapErr(err, "deleting class")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return class.ErrNotFound
	}
	return nil
}
