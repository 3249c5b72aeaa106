package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/class"
	"github.com/trezcool/trackademic/core/planner"
	"github.com/trezcool/trackademic/core/syllabus"
	"github.com/trezcool/trackademic/core/task"
)

const (
	maxBatchSize    = 200
	maxScheduleSize = 50
)

var (
	errClassNotFound = core.NewFieldError("class_id", "class not found")
	errTaskNotFound  = core.NewFieldError("task_ids", "task not found")
)

type taskApi struct {
	svc        *task.Service
	classSvc   *class.Service
	notifier   *syllabus.Notifier
	planner    *planner.Planner
	validate   *validator.Validate
	translator ut.Translator
}

func registerTaskAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := taskApi{
		svc:        deps.TaskSvc,
		classSvc:   deps.ClassSvc,
		notifier:   syllabus.NewNotifier(deps.MailSvc, deps.Logger),
		planner:    deps.Planner,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	tg := g.Group("/tasks", jwt)
	tg.GET("", api.query)
	tg.POST("", api.create)
	tg.POST("/batch", api.createBatch)
	tg.DELETE("", api.destroyMultiple)
	tg.GET("/date/:date", api.queryByDate)
	tg.POST("/schedule", api.schedule)

	dg := tg.Group("/:id", taskObjectMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/split", api.split)
}

func (api *taskApi) query(ctx echo.Context) error {
	uid, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	var q TaskQuery
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to TaskQuery")
	}
	filter, err := q.Filter(uid)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	tasks, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	return ctx.JSON(http.StatusOK, nonNil(tasks))
}

func (api *taskApi) queryByDate(ctx echo.Context) error {
	uid, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	day, err := time.ParseInLocation("2006-01-02", ctx.Param("date"), time.UTC)
	if err != nil {
		return core.NewFieldError("date", "invalid date, expected YYYY-MM-DD")
	}

	tasks, err := api.svc.QueryByDate(ctx.Request().Context(), uid, day)
	if err != nil {
		return errors.Wrap(err, "querying tasks by date")
	}
	return ctx.JSON(http.StatusOK, nonNil(tasks))
}

func (api *taskApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, err := claims.Identity()
	if err != nil {
		return err
	}

	var data task.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	rctx := ctx.Request().Context()
	if err := api.checkClass(rctx, id.UserID, data.ClassID.Int64); err != nil {
		return err
	}

	t, err := api.svc.Create(rctx, id.UserID, data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	api.notifier.Notify(id, "", []task.Task{t})
	return ctx.JSON(http.StatusCreated, t)
}

func (api *taskApi) createBatch(ctx echo.Context) error {
	uid, err := getContextUserID(ctx)
	if err != nil {
		return err
	}

	var data BatchTasksRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BatchTasksRequest")
	}
	if len(data.Tasks) == 0 {
		return core.NewFieldError("tasks", "this field is required")
	}
	if len(data.Tasks) > maxBatchSize {
		return core.NewFieldError("tasks", fmt.Sprintf("at most %d tasks per batch", maxBatchSize))
	}

	rctx := ctx.Request().Context()
	for i := range data.Tasks {
		nt := &data.Tasks[i]
		if err := nt.Validate(api.validate); err != nil {
			return api.itemError(i, err)
		}
		if err := api.checkClass(rctx, uid, nt.ClassID.Int64); err != nil {
			return api.itemError(i, err)
		}
	}

	tasks, err := api.svc.CreateBatch(rctx, uid, data.Tasks)
	if err != nil {
		return errors.Wrap(err, "creating tasks")
	}
	return ctx.JSON(http.StatusCreated, tasks)
}

func (api *taskApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctx.Get(contextObjectKey).(task.Task))
}

func (api *taskApi) update(ctx echo.Context) error {
	t := ctx.Get(contextObjectKey).(task.Task)

	var data task.UpdateTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}
	if data.IsEmpty() {
		return core.NewValidationError(errors.New("no fields to update"))
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	rctx := ctx.Request().Context()
	if data.ClassID != nil {
		if err := api.checkClass(rctx, t.UserID, data.ClassID.Int64); err != nil {
			return err
		}
	}

	t, err := api.svc.Update(rctx, t, data)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) destroy(ctx echo.Context) error {
	t := ctx.Get(contextObjectKey).(task.Task)
	if err := api.svc.Delete(ctx.Request().Context(), t.UserID, t.ID); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *taskApi) destroyMultiple(ctx echo.Context) error {
	uid, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	ids, err := query.Parse()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}

	if err := api.svc.Delete(ctx.Request().Context(), uid, ids...); err != nil {
		return errors.Wrap(err, "deleting tasks")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *taskApi) split(ctx echo.Context) error {
	t := ctx.Get(contextObjectKey).(task.Task)

	var data planner.SplitRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SplitRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	parts, err := api.planner.Split(ctx.Request().Context(), t, data.Parts)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"task_id": t.ID, "parts": parts})
}

func (api *taskApi) schedule(ctx echo.Context) error {
	uid, err := getContextUserID(ctx)
	if err != nil {
		return err
	}

	var data planner.ScheduleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScheduleRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	tasks, err := api.scheduleTasks(rctx, uid, data.TaskIDs)
	if err != nil {
		return err
	}
	if len(tasks) > maxScheduleSize {
		return core.NewFieldError("task_ids", fmt.Sprintf("at most %d tasks per schedule", maxScheduleSize))
	}

	slots, err := api.planner.Schedule(rctx, tasks, data.Schedule)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"slots": slots})
}

// scheduleTasks loads the listed tasks, or every unfinished task of the user when none is listed.
func (api *taskApi) scheduleTasks(ctx context.Context, userID int64, ids []int64) ([]task.Task, error) {
	if len(ids) == 0 {
		all, err := api.svc.Query(ctx, task.QueryFilter{UserID: userID}, nil)
		if err != nil {
			return nil, errors.Wrap(err, "querying tasks")
		}
		tasks := make([]task.Task, 0, len(all))
		for _, t := range all {
			if t.Status != task.StatusCompleted {
				tasks = append(tasks, t)
			}
		}
		return tasks, nil
	}

	if len(ids) > maxScheduleSize {
		return nil, core.NewFieldError("task_ids", fmt.Sprintf("at most %d tasks per schedule", maxScheduleSize))
	}
	tasks := make([]task.Task, 0, len(ids))
	for _, id := range ids {
		t, err := api.svc.Get(ctx, userID, id)
		if err != nil {
			if errors.Cause(err) == task.ErrNotFound {
				return nil, errTaskNotFound
			}
			return nil, errors.Wrap(err, "finding task by ID")
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// checkClass makes sure a class reference points to one of the user's classes.
func (api *taskApi) checkClass(ctx context.Context, userID int64, classID null.Int64) error {
	if !classID.Valid {
		return nil
	}
	if _, err := api.classSvc.Get(ctx, userID, classID.Int64); err != nil {
		if errors.Cause(err) == class.ErrNotFound {
			return errClassNotFound
		}
		return errors.Wrap(err, "finding class by ID")
	}
	return nil
}

// itemError keys the validation errors of the i-th batch item by `tasks[i].<field>`.
func (api *taskApi) itemError(i int, err error) error {
	prefix := fmt.Sprintf("tasks[%d].", i)
	var fields []core.FieldError
	switch verr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, fe := range verr {
			fields = append(fields, core.FieldError{Field: prefix + fe.Field(), Error: fe.Translate(api.translator)})
		}
	case *core.ValidationError:
		for _, fe := range verr.Fields {
			fields = append(fields, core.FieldError{Field: prefix + fe.Field, Error: fe.Error})
		}
	default:
		return err
	}
	return core.NewValidationError(err, fields...)
}

// taskObjectMiddleware loads the context user's task `:id` into the context, or answers 404.
func taskObjectMiddleware(svc *task.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			uid, err := getContextUserID(ctx)
			if err != nil {
				return err
			}
			id, err := parseID(ctx.Param("id"))
			if err != nil {
				return err
			}
			t, err := svc.Get(ctx.Request().Context(), uid, id)
			if err != nil {
				if errors.Cause(err) == task.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding task by ID")
			}
			ctx.Set(contextObjectKey, t)
			return next(ctx)
		}
	}
}

type BatchTasksRequest struct {
	Tasks []task.NewTask `json:"tasks"`
}

func nonNil(tasks []task.Task) []task.Task {
	if tasks == nil {
		return []task.Task{}
	}
	return tasks
}
