package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/task"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// TaskQuery is the query string of the task list endpoint.
type TaskQuery struct {
	Status  string `query:"status"`
	ClassID string `query:"class_id"`
	From    string `query:"from"`
	To      string `query:"to"`
}

// Filter validates the query and turns it into a task.QueryFilter scoped to userID.
// A date-only `to` includes that whole day.
func (q TaskQuery) Filter(userID int64) (task.QueryFilter, error) {
	filter := task.QueryFilter{
		UserID:  userID,
		Status:  core.CleanString(q.Status, true /* lower */),
		ClassID: task.ParseClassID(q.ClassID),
	}
	if filter.Status != "" && !oneOf(filter.Status, task.Statuses) {
		return filter, core.NewFieldError("status", "must be one of: "+strings.Join(task.Statuses, ", "))
	}
	if s := strings.TrimSpace(q.ClassID); s != "" && !filter.ClassID.Valid {
		return filter, core.NewFieldError("class_id", "must be a positive integer")
	}
	if s := strings.TrimSpace(q.From); s != "" {
		t, _, ok := core.ParseDateTime(s, time.UTC)
		if !ok {
			return filter, core.NewFieldError("from", "invalid date, expected YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS")
		}
		filter.DueFrom = t.UTC()
	}
	if s := strings.TrimSpace(q.To); s != "" {
		t, dateOnly, ok := core.ParseDateTime(s, time.UTC)
		if !ok {
			return filter, core.NewFieldError("to", "invalid date, expected YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS")
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		filter.DueTo = t.UTC()
	}
	return filter, nil
}

// DestroyMultipleRequest is `?id=1&id=2`.
type DestroyMultipleRequest struct {
	IDs []string `query:"id"`
}

func (r DestroyMultipleRequest) Parse() ([]int64, error) {
	ids := make([]int64, 0, len(r.IDs))
	for _, s := range r.IDs {
		id, err := parseID(s)
		if err != nil {
			return nil, core.NewFieldError("id", "invalid id: "+s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
