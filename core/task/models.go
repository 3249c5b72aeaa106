package task

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/trackademic/core"
)

// Types
const (
	TypeAssignment = "assignment"
	TypeHomework   = "homework"
	TypeProject    = "project"
	TypeExam       = "exam"
	TypeQuiz       = "quiz"
)

// Priorities
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Statuses
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

var (
	Types      = []string{TypeAssignment, TypeHomework, TypeProject, TypeExam, TypeQuiz}
	Priorities = []string{PriorityHigh, PriorityMedium, PriorityLow}
	Statuses   = []string{StatusPending, StatusInProgress, StatusCompleted}
)

// Task is a persisted academic task, owned by a user and optionally attached to a class.
type Task struct {
	ID             int64      `json:"id" db:"id"`
	UserID         int64      `json:"user_id" db:"user_id"`
	ClassID        null.Int64 `json:"class_id" db:"class_id"`
	Title          string     `json:"title" db:"title"`
	Description    string     `json:"description" db:"description"`
	DueDate        time.Time  `json:"due_date" db:"due_date"`
	Type           string     `json:"type" db:"type"`
	Priority       string     `json:"priority" db:"priority"`
	EstimatedHours float64    `json:"estimated_hours" db:"estimated_hours"`
	Status         string     `json:"status" db:"status"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// ClassRef is a leniently decoded class reference.
// null, "", non-numeric strings & non-positive numbers all decode to a null class.
type ClassRef struct {
	null.Int64
}

func (ref *ClassRef) UnmarshalJSON(data []byte) error {
	ref.Int64 = null.Int64{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		ref.Int64 = ParseClassID(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	if f > 0 && f == math.Trunc(f) && f <= math.MaxInt64 {
		ref.Int64 = null.Int64From(int64(f))
	}
	return nil
}

// ParseClassID coerces a class identifier: "" or anything that is not a positive integer gives null.
func ParseClassID(s string) null.Int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return null.Int64{}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return null.Int64{}
	}
	return null.Int64From(id)
}

// ParseDueDate parses a due date. A date-only value is moved to `dueTime` after midnight.
func ParseDueDate(s string, dueTime time.Duration) (time.Time, error) {
	t, dateOnly, ok := core.ParseDateTime(s, time.UTC)
	if !ok {
		return time.Time{}, core.NewFieldError("due_date", "invalid date, expected YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS")
	}
	if dateOnly {
		t = t.Add(dueTime)
	}
	return t.UTC(), nil
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	Title          string   `json:"title" validate:"required,notblank,max=255"`
	Description    string   `json:"description"`
	DueDate        string   `json:"due_date" validate:"required,isodate"`
	Type           string   `json:"type" validate:"omitempty,tasktype"`
	Priority       string   `json:"priority" validate:"omitempty,taskpriority"`
	EstimatedHours float64  `json:"estimated_hours" validate:"gte=0"`
	Status         string   `json:"status" validate:"omitempty,taskstatus"`
	ClassID        ClassRef `json:"class_id"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.clean()
	return validate.Struct(nt)
}

func (nt *NewTask) clean() {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	nt.DueDate = core.CleanString(nt.DueDate)
	nt.Type = core.CleanString(nt.Type, true /* lower */)
	nt.Priority = core.CleanString(nt.Priority, true /* lower */)
	nt.Status = core.CleanString(nt.Status, true /* lower */)
	if nt.Type == "" {
		nt.Type = TypeAssignment
	}
	if nt.Priority == "" {
		nt.Priority = DefaultPriority(nt.Type)
	}
	if nt.Status == "" {
		nt.Status = StatusPending
	}
}

// DefaultPriority is high for projects & exams, medium otherwise.
func DefaultPriority(typ string) string {
	switch typ {
	case TypeProject, TypeExam:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// UpdateTask defines what information may be provided to modify an existing Task.
// nil fields are left unchanged.
type UpdateTask struct {
	Title          *string   `json:"title" validate:"omitempty,notblank,max=255"`
	Description    *string   `json:"description"`
	DueDate        *string   `json:"due_date" validate:"omitempty,isodate"`
	Type           *string   `json:"type" validate:"omitempty,tasktype"`
	Priority       *string   `json:"priority" validate:"omitempty,taskpriority"`
	EstimatedHours *float64  `json:"estimated_hours" validate:"omitempty,gte=0"`
	Status         *string   `json:"status" validate:"omitempty,taskstatus"`
	ClassID        *ClassRef `json:"class_id"`
}

func (ut *UpdateTask) Validate(validate *validator.Validate) error {
	for _, s := range []*string{ut.Title, ut.Description, ut.DueDate} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	for _, s := range []*string{ut.Type, ut.Priority, ut.Status} {
		if s != nil {
			*s = core.CleanString(*s, true /* lower */)
		}
	}
	return validate.Struct(ut)
}

func (ut UpdateTask) IsEmpty() bool {
	return ut.Title == nil && ut.Description == nil && ut.DueDate == nil && ut.Type == nil &&
		ut.Priority == nil && ut.EstimatedHours == nil && ut.Status == nil && ut.ClassID == nil
}

type QueryFilter struct {
	UserID  int64
	DueFrom time.Time // inclusive
	DueTo   time.Time // exclusive
	Status  string
	ClassID null.Int64
}
