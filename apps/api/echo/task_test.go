package echoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackademic/core/syllabus"
	"github.com/trezcool/trackademic/core/task"
	emailsvc "github.com/trezcool/trackademic/services/email"
)

func Test_taskApi_query(t *testing.T) {
	app := setup(t)
	alice := app.createUser(t, "Alice", "alice@example.com")
	bob := app.createUser(t, "Bob", "bob@example.com")
	token := app.getToken(t, alice)

	exam := app.createTask(t, alice, "Midterm", "2025-03-10T09:00:00")
	hw2 := app.createTask(t, alice, "Homework 2", "2025-03-01")
	hw1 := app.createTask(t, alice, "Homework 1", "2025-02-12")
	lateNight := app.createTask(t, alice, "Reading", "2025-03-01T00:00:00")
	nextDay := app.createTask(t, alice, "Quiz 1", "2025-03-02T00:00:00")
	app.createTask(t, bob, "Bob's homework", "2025-03-01")

	done, err := app.taskSvc.Update(context.Background(), hw1, task.UpdateTask{Status: strPtr(task.StatusCompleted)})
	require.NoError(t, err)

	tests := []httpTest{
		{name: "auth required", path: "/v1/tasks", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "soonest first", path: "/v1/tasks", token: token, wantCode: http.StatusOK,
			wantData: marshallList(t, done, lateNight, hw2, nextDay, exam),
		},
		{
			name: "ordering", path: "/v1/tasks?ordering=-due_date", token: token, wantCode: http.StatusOK,
			wantData: marshallList(t, exam, nextDay, hw2, lateNight, done),
		},
		{
			name: "status", path: "/v1/tasks?status=completed", token: token, wantCode: http.StatusOK,
			wantData: marshallList(t, done),
		},
		{
			name: "range", path: "/v1/tasks?from=2025-03-01&to=2025-03-02", token: token, wantCode: http.StatusOK,
			wantData: marshallList(t, lateNight, hw2, nextDay),
		},
		{
			name: "bad status", path: "/v1/tasks?status=late", token: token, wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"status": "must be one of: pending, in_progress, completed"}),
		},
		{
			name: "bad from", path: "/v1/tasks?from=tomorrow", token: token, wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"from": "invalid date, expected YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS"}),
		},
		{
			// 00:00:00 <= due < next day 00:00:00
			name: "by date", path: "/v1/tasks/date/2025-03-01", token: token, wantCode: http.StatusOK,
			wantData: marshallList(t, lateNight, hw2),
		},
		{name: "by date (none)", path: "/v1/tasks/date/2024-01-01", token: token, wantCode: http.StatusOK, wantData: marshallList(t)},
		{
			name: "by date (invalid)", path: "/v1/tasks/date/03-01-2025", token: token, wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"date": "invalid date, expected YYYY-MM-DD"}),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			checkCodeAndData(t, tc, app.run(t, tc))
		})
	}
}

func Test_taskApi_create(t *testing.T) {
	app := setup(t)
	alice := app.createUser(t, "Alice", "alice@example.com")
	bob := app.createUser(t, "Bob", "bob@example.com")
	algo := app.createClass(t, alice, "Algorithms")
	bobsClass := app.createClass(t, bob, "Databases")
	token := app.getToken(t, alice)

	tests := []struct {
		name        string
		body        string
		wantCode    int
		wantErrs    map[string]string
		wantClassID interface{}
		wantDue     time.Time
		wantPrio    string
	}{
		{
			name:     "missing fields",
			body:     `{}`,
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"title": "this field is required", "due_date": "this field is required"},
		},
		{
			name:     "bad values",
			body:     `{"title": "HW", "due_date": "next week", "type": "essay"}`,
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{
				"due_date": "invalid date, expected YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS",
				"type":     "must be one of: assignment, homework, project, exam, quiz",
			},
		},
		{
			name:     "other user's class",
			body:     fmt.Sprintf(`{"title": "HW", "due_date": "2025-03-01", "class_id": %d}`, bobsClass.ID),
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"class_id": "class not found"},
		},
		{
			name:        "empty class id",
			body:        `{"title": "Homework 2", "due_date": "2025-03-01", "type": "homework", "class_id": ""}`,
			wantCode:    http.StatusCreated,
			wantClassID: nil,
			wantDue:     time.Date(2025, 3, 1, 23, 59, 59, 0, time.UTC),
			wantPrio:    task.PriorityMedium,
		},
		{
			name:        "non numeric class id",
			body:        `{"title": "Project 1", "due_date": "2025-03-24T17:00:00", "type": "project", "class_id": "abc"}`,
			wantCode:    http.StatusCreated,
			wantClassID: nil,
			wantDue:     time.Date(2025, 3, 24, 17, 0, 0, 0, time.UTC),
			wantPrio:    task.PriorityHigh,
		},
		{
			name:        "string class id",
			body:        fmt.Sprintf(`{"title": "Exam", "due_date": "2025-04-01", "type": "exam", "class_id": "%d"}`, algo.ID),
			wantCode:    http.StatusCreated,
			wantClassID: float64(algo.ID),
			wantDue:     time.Date(2025, 4, 1, 23, 59, 59, 0, time.UTC),
			wantPrio:    task.PriorityHigh,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			emailsvc.ResetSentMessages()
			rec := app.run(t, httpTest{method: http.MethodPost, path: "/v1/tasks", token: token, body: []byte(tc.body)})
			require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())

			if tc.wantErrs != nil {
				ok, err := jsonBytesEqual(rec.Body.Bytes(), marshallObj(t, tc.wantErrs))
				require.NoError(t, err)
				assert.True(t, ok, rec.Body.String())
				assert.Empty(t, emailsvc.GetSentMessages())
				return
			}

			var got map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tc.wantClassID, got["class_id"])
			assert.Equal(t, tc.wantPrio, got["priority"])
			assert.Equal(t, task.StatusPending, got["status"])
			assert.Equal(t, float64(alice.ID), got["user_id"])
			due, err := time.Parse(time.RFC3339, got["due_date"].(string))
			require.NoError(t, err)
			assert.True(t, tc.wantDue.Equal(due), "due = %v", due)

			// a single created task is announced to its owner
			sent := emailsvc.GetSentMessages()
			require.Len(t, sent, 1)
			assert.Equal(t, "Your Schedule Has Been Updated - 1 New Assignment", sent[0].Subject)
			assert.Equal(t, alice.Email, sent[0].To[0].Address)
		})
	}
}

func Test_taskApi_createBatch(t *testing.T) {
	app := setup(t)
	alice := app.createUser(t, "Alice", "alice@example.com")
	token := app.getToken(t, alice)

	t.Run("invalid item", func(t *testing.T) {
		tc := httpTest{
			method: http.MethodPost, path: "/v1/tasks/batch", token: token,
			body:     []byte(`{"tasks": [{"title": "HW 1", "due_date": "2025-02-12"}, {"title": "", "due_date": "2025-02-19"}]}`),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"tasks[1].title": "this field is required"}),
		}
		checkCodeAndData(t, tc, app.run(t, tc))

		tasks, err := app.taskSvc.Query(context.Background(), task.QueryFilter{UserID: alice.ID}, nil)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("empty", func(t *testing.T) {
		tc := httpTest{
			method: http.MethodPost, path: "/v1/tasks/batch", token: token, body: []byte(`{"tasks": []}`),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"tasks": "this field is required"}),
		}
		checkCodeAndData(t, tc, app.run(t, tc))
	})

	t.Run("success", func(t *testing.T) {
		rec := app.run(t, httpTest{
			method: http.MethodPost, path: "/v1/tasks/batch", token: token,
			body: []byte(`{"tasks": [{"title": "HW 1", "due_date": "2025-02-12", "type": "homework"}, {"title": "Project 1", "due_date": "2025-02-20", "type": "project"}]}`),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created []task.Task
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		require.Len(t, created, 2)
		assert.Equal(t, "HW 1", created[0].Title)
		assert.Equal(t, task.PriorityHigh, created[1].Priority)
	})
}

func Test_taskApi_detail(t *testing.T) {
	app := setup(t)
	alice := app.createUser(t, "Alice", "alice@example.com")
	bob := app.createUser(t, "Bob", "bob@example.com")
	token := app.getToken(t, alice)

	hw := app.createTask(t, alice, "Homework 2", "2025-03-01")
	bobs := app.createTask(t, bob, "Bob's homework", "2025-03-01")
	notFound := marshallObj(t, httpErr{Error: "not found"})

	tests := []httpTest{
		{name: "get", path: fmt.Sprintf("/v1/tasks/%d", hw.ID), token: token, wantCode: http.StatusOK, wantData: marshallObj(t, hw)},
		{name: "get other's", path: fmt.Sprintf("/v1/tasks/%d", bobs.ID), token: token, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "get unknown", path: "/v1/tasks/9999", token: token, wantCode: http.StatusNotFound, wantData: notFound},
		{
			name: "update other's", method: http.MethodPut, path: fmt.Sprintf("/v1/tasks/%d", bobs.ID), token: token,
			body: []byte(`{"title": "Mine"}`), wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "update nothing", method: http.MethodPut, path: fmt.Sprintf("/v1/tasks/%d", hw.ID), token: token,
			body: []byte(`{}`), wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "no fields to update"}),
		},
		{
			name: "update invalid", method: http.MethodPut, path: fmt.Sprintf("/v1/tasks/%d", hw.ID), token: token,
			body: []byte(`{"status": "late"}`), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"status": "must be one of: pending, in_progress, completed"}),
		},
		{
			name: "delete other's", method: http.MethodDelete, path: fmt.Sprintf("/v1/tasks/%d", bobs.ID), token: token,
			wantCode: http.StatusNotFound, wantData: notFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			checkCodeAndData(t, tc, app.run(t, tc))
		})
	}

	t.Run("update", func(t *testing.T) {
		rec := app.run(t, httpTest{
			method: http.MethodPut, path: fmt.Sprintf("/v1/tasks/%d", hw.ID), token: token,
			body: []byte(`{"status": "in_progress", "due_date": "2025-03-02", "estimated_hours": 4.5}`),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		got, err := app.taskSvc.Get(context.Background(), alice.ID, hw.ID)
		require.NoError(t, err)
		assert.Equal(t, task.StatusInProgress, got.Status)
		assert.Equal(t, 4.5, got.EstimatedHours)
		assert.Equal(t, "Homework 2", got.Title)
		assert.True(t, time.Date(2025, 3, 2, 23, 59, 59, 0, time.UTC).Equal(got.DueDate))
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.run(t, httpTest{method: http.MethodDelete, path: fmt.Sprintf("/v1/tasks/%d", hw.ID), token: token})
		require.Equal(t, http.StatusNoContent, rec.Code)
		_, err := app.taskSvc.Get(context.Background(), alice.ID, hw.ID)
		assert.Equal(t, task.ErrNotFound, err)
	})
}

func Test_taskApi_destroyMultiple(t *testing.T) {
	app := setup(t)
	alice := app.createUser(t, "Alice", "alice@example.com")
	bob := app.createUser(t, "Bob", "bob@example.com")
	token := app.getToken(t, alice)

	t1 := app.createTask(t, alice, "HW 1", "2025-02-12")
	t2 := app.createTask(t, alice, "HW 2", "2025-02-19")
	t3 := app.createTask(t, alice, "HW 3", "2025-02-26")
	bobs := app.createTask(t, bob, "Bob's homework", "2025-03-01")

	tc := httpTest{
		method: http.MethodDelete, path: "/v1/tasks?id=abc", token: token,
		wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"id": "invalid id: abc"}),
	}
	checkCodeAndData(t, tc, app.run(t, tc))

	rec := app.run(t, httpTest{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/v1/tasks?id=%d&id=%d&id=%d", t1.ID, t3.ID, bobs.ID),
		token:  token,
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	left, err := app.taskSvc.Query(context.Background(), task.QueryFilter{UserID: alice.ID}, nil)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, t2.ID, left[0].ID)

	_, err = app.taskSvc.Get(context.Background(), bob.ID, bobs.ID)
	assert.NoError(t, err, "other users' tasks are untouched")
}

func strPtr(s string) *string { return &s }

func Test_taskApi_split(t *testing.T) {
	app := setup(t)
	alice := app.createUser(t, "Alice", "alice@example.com")
	bob := app.createUser(t, "Bob", "bob@example.com")
	token := app.getToken(t, alice)

	report := app.createTask(t, alice, "Final report", "2025-04-30")
	bobs := app.createTask(t, bob, "Bob's homework", "2025-03-01")
	path := fmt.Sprintf("/v1/tasks/%d/split", report.ID)

	tests := []struct {
		httpTest
		replies   []reply
		wantCalls int
	}{
		{httpTest: httpTest{name: "auth required", method: http.MethodPost, path: path, body: []byte(`{"parts": 3}`),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)}},
		{httpTest: httpTest{name: "other's task", method: http.MethodPost, path: fmt.Sprintf("/v1/tasks/%d/split", bobs.ID), token: token,
			body: []byte(`{"parts": 3}`), wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"})}},
		{httpTest: httpTest{name: "parts required", method: http.MethodPost, path: path, token: token, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"parts": "this field is required"})}},
		{httpTest: httpTest{name: "too few parts", method: http.MethodPost, path: path, token: token, body: []byte(`{"parts": 1}`),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"parts": "parts must be 2 or greater"})}},
		{
			httpTest: httpTest{name: "split", method: http.MethodPost, path: path, token: token, body: []byte(`{"parts": 3}`),
				wantCode: http.StatusOK, wantData: marshallObj(t, map[string]interface{}{
					"task_id": report.ID,
					"parts":   []string{"Research sources", "Draft outline", "Write report"},
				})},
			replies:   []reply{{text: "1. Research sources\n2. Draft outline\n3. Write report\n"}},
			wantCalls: 1,
		},
		{
			httpTest: httpTest{name: "rate limited", method: http.MethodPost, path: path, token: token, body: []byte(`{"parts": 2}`),
				wantCode: http.StatusTooManyRequests},
			replies:   []reply{{err: &syllabus.ProviderError{Provider: "openai", StatusCode: 429, Message: "slow down"}}},
			wantCalls: 1,
		},
		{
			httpTest: httpTest{name: "empty reply", method: http.MethodPost, path: path, token: token, body: []byte(`{"parts": 2}`),
				wantCode: http.StatusInternalServerError},
			replies:   []reply{{text: "```\n```"}},
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.provider.script(tt.replies...)
			rec := app.run(t, tt.httpTest)
			checkCodeAndData(t, tt.httpTest, rec)
			assert.Equal(t, tt.wantCalls, app.provider.callCount())
		})
	}
}

func Test_taskApi_schedule(t *testing.T) {
	app := setup(t)
	alice := app.createUser(t, "Alice", "alice@example.com")
	bob := app.createUser(t, "Bob", "bob@example.com")
	token := app.getToken(t, alice)

	hw1 := app.createTask(t, alice, "Homework 1", "2025-02-12")
	hw2 := app.createTask(t, alice, "Homework 2", "2025-03-01")
	done := app.createTask(t, alice, "Quiz 1", "2025-02-01")
	_, err := app.taskSvc.Update(context.Background(), done, task.UpdateTask{Status: strPtr(task.StatusCompleted)})
	require.NoError(t, err)
	bobs := app.createTask(t, bob, "Bob's homework", "2025-03-01")

	schedule := []byte(`{"schedule": "Weekdays 6pm-9pm"}`)

	t.Run("schedule required", func(t *testing.T) {
		tc := httpTest{method: http.MethodPost, path: "/v1/tasks/schedule", token: token, body: []byte(`{"schedule": "  "}`),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"schedule": "this field is required"})}
		checkCodeAndData(t, tc, app.run(t, tc))
	})

	t.Run("other's task", func(t *testing.T) {
		app.provider.script()
		tc := httpTest{method: http.MethodPost, path: "/v1/tasks/schedule", token: token,
			body:     []byte(fmt.Sprintf(`{"task_ids": [%d, %d], "schedule": "Monday"}`, hw1.ID, bobs.ID)),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"task_ids": "task not found"})}
		checkCodeAndData(t, tc, app.run(t, tc))
		assert.Zero(t, app.provider.callCount())
	})

	t.Run("unfinished tasks by default", func(t *testing.T) {
		app.provider.script(reply{text: fmt.Sprintf("[%d], Monday 6pm\n[%d], Tuesday 7pm\n[%d], Friday 6pm\n[%d], Friday 8pm\n",
			hw1.ID, hw2.ID, done.ID, bobs.ID)})
		tc := httpTest{method: http.MethodPost, path: "/v1/tasks/schedule", token: token, body: schedule,
			wantCode: http.StatusOK, wantData: marshallObj(t, map[string]interface{}{
				"slots": []map[string]interface{}{
					{"task_id": hw1.ID, "time": "Monday 6pm"},
					{"task_id": hw2.ID, "time": "Tuesday 7pm"},
				},
			})}
		checkCodeAndData(t, tc, app.run(t, tc))
		assert.Equal(t, 1, app.provider.callCount())
	})

	t.Run("listed tasks", func(t *testing.T) {
		app.provider.script(reply{text: fmt.Sprintf("%d, Saturday 10am", hw2.ID)})
		tc := httpTest{method: http.MethodPost, path: "/v1/tasks/schedule", token: token,
			body:     []byte(fmt.Sprintf(`{"task_ids": [%d], "schedule": "Weekends"}`, hw2.ID)),
			wantCode: http.StatusOK, wantData: marshallObj(t, map[string]interface{}{
				"slots": []map[string]interface{}{{"task_id": hw2.ID, "time": "Saturday 10am"}},
			})}
		checkCodeAndData(t, tc, app.run(t, tc))
	})

	t.Run("overloaded", func(t *testing.T) {
		busy := reply{err: &syllabus.ProviderError{Provider: "openai", StatusCode: 503, Message: "overloaded"}}
		app.provider.script(busy, busy, busy)
		rec := app.run(t, httpTest{method: http.MethodPost, path: "/v1/tasks/schedule", token: token, body: schedule})
		require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
		assert.Equal(t, "provider-unavailable", decodeBody(t, rec)["kind"])
		assert.Equal(t, 3, app.provider.callCount())
	})
}
