package task

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/trackademic/core"
)

const (
	scheduleUpdatedTemplate = "schedule_updated"
	reminderTemplate        = "task_reminder"
)

type (
	// NotificationItem is the view of a task in notification emails.
	NotificationItem struct {
		Title          string
		Description    string
		Due            string
		Type           string
		Priority       string
		EstimatedHours float64
	}

	notificationData struct {
		Name   string
		Source string
		Tasks  []NotificationItem
	}
)

// FormatDue renders a due date for humans.
func FormatDue(t time.Time) string {
	return t.UTC().Format("Mon, Jan 2, 2006 at 15:04 MST")
}

func ItemFromTask(t Task) NotificationItem {
	return NotificationItem{
		Title:          t.Title,
		Description:    t.Description,
		Due:            FormatDue(t.DueDate),
		Type:           t.Type,
		Priority:       t.Priority,
		EstimatedHours: t.EstimatedHours,
	}
}

// NewScheduleUpdatedMessage builds the "schedule updated" email listing new items.
// source names where the items come from (e.g. a syllabus file name) and may be empty.
func NewScheduleUpdatedMessage(to mail.Address, source string, items []NotificationItem) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      fmt.Sprintf("Your Schedule Has Been Updated - %d New %s", len(items), core.Plural(len(items), "Assignment")),
		TemplateName: scheduleUpdatedTemplate,
		TemplateData: notificationData{Name: to.Name, Source: source, Tasks: items},
	}
}

// NewReminderMessage builds the "tasks due soon" email.
func NewReminderMessage(to mail.Address, tasks []Task) *core.EmailMessage {
	items := make([]NotificationItem, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, ItemFromTask(t))
	}
	return &core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      fmt.Sprintf("Reminder: You have %d %s due soon!", len(items), core.Plural(len(items), "task")),
		TemplateName: reminderTemplate,
		TemplateData: notificationData{Name: to.Name, Tasks: items},
	}
}
