package syllabus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/class"
	"github.com/trezcool/trackademic/core/task"
)

type (
	// TaskStore persists one task at a time.
	TaskStore interface {
		Insert(ctx context.Context, t task.Task) (task.Task, error)
	}

	// ClassFinder resolves a class owned by the user.
	ClassFinder interface {
		Get(ctx context.Context, userID, id int64) (class.Class, error)
	}

	// Failure is a record that could not be persisted.
	Failure struct {
		Index int    `json:"index"`
		Title string `json:"title,omitempty"`
		Error string `json:"error"`
	}

	Materializer struct {
		store   TaskStore
		classes ClassFinder
		dueTime time.Duration
		logger  core.Logger
	}
)

func NewMaterializer(store TaskStore, classes ClassFinder, conf *core.Config, logger core.Logger) *Materializer {
	return &Materializer{store: store, classes: classes, dueTime: conf.Syllabus.DueTime, logger: logger}
}

// Materialize creates one pending task per record, in order.
// Records fail independently; nothing is rolled back.
//
// The task's class is classID when set, otherwise the record's own class_id if the user owns that class.
func (m *Materializer) Materialize(ctx context.Context, userID int64, classID null.Int64, records []json.RawMessage) ([]task.Task, []Failure) {
	created := make([]task.Task, 0, len(records))
	var failed []Failure

	for i, raw := range records {
		t, err := m.build(ctx, userID, classID, raw)
		if err == nil {
			t, err = m.store.Insert(ctx, t)
		}
		if err != nil {
			m.logger.Warn("could not persist assignment", "user_id", userID, "index", i, "title", t.Title, err)
			failed = append(failed, Failure{Index: i, Title: t.Title, Error: errors.Cause(err).Error()})
			continue
		}
		created = append(created, t)
	}
	return created, failed
}

func (m *Materializer) build(ctx context.Context, userID int64, classID null.Int64, raw json.RawMessage) (task.Task, error) {
	rec, err := DecodeRecord(raw)
	if err != nil {
		return task.Task{Title: rec.Title}, err
	}
	due, err := task.ParseDueDate(rec.DueDate, m.dueTime)
	if err != nil {
		return task.Task{Title: rec.Title}, errors.Errorf("invalid due_date %q", rec.DueDate)
	}

	if !classID.Valid && rec.ClassID.Valid && m.classes != nil {
		if _, err := m.classes.Get(ctx, userID, rec.ClassID.Int64.Int64); err == nil {
			classID = rec.ClassID.Int64
		} else if errors.Cause(err) != class.ErrNotFound {
			return task.Task{Title: rec.Title}, errors.Wrap(err, "finding class")
		}
	}

	now := time.Now().UTC()
	return task.Task{
		UserID:         userID,
		ClassID:        classID,
		Title:          rec.Title,
		Description:    rec.Description,
		DueDate:        due,
		Type:           rec.Type,
		Priority:       rec.Priority,
		EstimatedHours: float64(rec.EstimatedHours),
		Status:         task.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
