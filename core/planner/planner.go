// Package planner asks the completion provider to break tasks into parts and to lay them out on a schedule.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/syllabus"
	"github.com/trezcool/trackademic/core/task"
)

const (
	MinParts = 2
	MaxParts = 10
)

var (
	bulletRe = regexp.MustCompile(`^\s*(?:[-*•]\s+|\d+[.)]\s+)`)
	slotRe   = regexp.MustCompile(`^\s*(?:[-*•]\s+|\d+[.)]\s+)?\[?(\d+)\]?\s*,\s*(.+?)\s*$`)
)

type (
	SplitRequest struct {
		Parts int `json:"parts" validate:"required,min=2,max=10"`
	}

	ScheduleRequest struct {
		TaskIDs  []int64 `json:"task_ids"`
		Schedule string  `json:"schedule" validate:"required,notblank,max=2000"`
	}

	// Slot is a task placed on the schedule. A task may get more than one slot.
	Slot struct {
		TaskID int64  `json:"task_id"`
		Time   string `json:"time"`
	}

	// scheduleItem is the view of a task handed to the provider.
	scheduleItem struct {
		ID             int64   `json:"id"`
		Title          string  `json:"title"`
		DueDate        string  `json:"due_date"`
		Type           string  `json:"type"`
		Priority       string  `json:"priority"`
		EstimatedHours float64 `json:"estimated_hours"`
	}
)

func (r *SplitRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

func (r *ScheduleRequest) Validate(validate *validator.Validate) error {
	r.Schedule = strings.TrimSpace(r.Schedule)
	return validate.Struct(r)
}

type Planner struct {
	invoker *syllabus.Invoker
	logger  core.Logger
}

func NewPlanner(conf *core.Config, provider syllabus.Completer, logger core.Logger) *Planner {
	return &Planner{invoker: syllabus.NewInvoker(provider, conf, logger), logger: logger}
}

// SplitPrompt is the instruction for splitting t into `parts` sequential parts.
func SplitPrompt(t task.Task, parts int) string {
	subject := t.Title
	if d := strings.TrimSpace(t.Description); d != "" {
		subject += " (" + d + ")"
	}
	return fmt.Sprintf("Split this task into %d parts and just name each one simply and sequentially, with no descriptions: %s",
		parts, subject)
}

// Split returns at most `parts` names for the parts of t, in order.
func (pl *Planner) Split(ctx context.Context, t task.Task, parts int) ([]string, error) {
	if parts < MinParts || parts > MaxParts {
		return nil, &syllabus.Error{
			Kind:    syllabus.KindInvalidInput,
			Message: fmt.Sprintf("parts must be between %d and %d", MinParts, MaxParts),
		}
	}
	text, err := pl.invoker.Ask(ctx, SplitPrompt(t, parts))
	if err != nil {
		return nil, err
	}

	names := ParseParts(text)
	if len(names) == 0 {
		return nil, &syllabus.Error{Kind: syllabus.KindParseFailed, Message: "Failed to parse AI response", RawResponse: text}
	}
	if len(names) > parts {
		pl.logger.Warn("provider returned extra parts", "task", t.ID, "want", parts, "got", len(names))
		names = names[:parts]
	}
	pl.logger.Info("task split", "task", t.ID, "parts", len(names))
	return names, nil
}

// ParseParts reads one part name per line, dropping list markers, blank lines & code fences.
func ParseParts(text string) []string {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		line = strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))
		line = strings.Trim(line, `"*`)
		if line != "" {
			names = append(names, line)
		}
	}
	return names
}

// SchedulePrompt is the instruction for fitting tasks into a free-form schedule.
func SchedulePrompt(tasks []task.Task, schedule string) (string, error) {
	items := make([]scheduleItem, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, scheduleItem{
			ID:             t.ID,
			Title:          t.Title,
			DueDate:        t.DueDate.UTC().Format(time.RFC3339),
			Type:           t.Type,
			Priority:       t.Priority,
			EstimatedHours: t.EstimatedHours,
		})
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", errors.Wrap(err, "encoding tasks")
	}
	return fmt.Sprintf(`Schedule these tasks %s into this schedule %s. Then, return each task by id and the time it is scheduled for, in the format: "[task_id], [time]".`,
		data, schedule), nil
}

// Schedule fits tasks into the schedule. Slots naming a task that was not asked for are dropped.
func (pl *Planner) Schedule(ctx context.Context, tasks []task.Task, schedule string) ([]Slot, error) {
	if len(tasks) == 0 {
		return []Slot{}, nil
	}
	prompt, err := SchedulePrompt(tasks, schedule)
	if err != nil {
		return nil, &syllabus.Error{Kind: syllabus.KindInternal, Message: "Internal server error", Err: err}
	}
	text, err := pl.invoker.Ask(ctx, prompt)
	if err != nil {
		return nil, err
	}

	known := make(map[int64]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}
	slots := ParseSlots(text, known)
	if len(slots) == 0 {
		return nil, &syllabus.Error{Kind: syllabus.KindParseFailed, Message: "Failed to parse AI response", RawResponse: text}
	}
	pl.logger.Info("tasks scheduled", "tasks", len(tasks), "slots", len(slots))
	return slots, nil
}

// ParseSlots reads "[task_id], [time]" lines, keeping only the known task IDs.
func ParseSlots(text string, known map[int64]bool) []Slot {
	slots := make([]Slot, 0)
	for _, line := range strings.Split(text, "\n") {
		m := slotRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || !known[id] {
			continue
		}
		at := strings.TrimSpace(strings.Trim(m[2], `[]"'`))
		if at == "" {
			continue
		}
		slots = append(slots, Slot{TaskID: id, Time: at})
	}
	return slots
}
