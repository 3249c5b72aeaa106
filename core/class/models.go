package class

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/trackademic/core"
)

// Class groups the tasks of a course.
type Class struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	Name       string    `json:"name" db:"name"`
	Code       string    `json:"code" db:"code"`
	Instructor string    `json:"instructor" db:"instructor"`
	Color      string    `json:"color" db:"color"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// NewClass is also used to fully update an existing Class.
type NewClass struct {
	Name       string `json:"name" validate:"required,notblank,max=255"`
	Code       string `json:"code" validate:"max=64"`
	Instructor string `json:"instructor" validate:"max=255"`
	Color      string `json:"color" validate:"omitempty,hexcolor_"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Code = core.CleanString(nc.Code)
	nc.Instructor = core.CleanString(nc.Instructor)
	nc.Color = core.CleanString(nc.Color, true /* lower */)
	return validate.Struct(nc)
}
