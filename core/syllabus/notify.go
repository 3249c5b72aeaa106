package syllabus

import (
	"fmt"
	"net/mail"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/task"
)

// Notifier sends the best-effort "schedule updated" email.
type Notifier struct {
	mailSvc core.EmailService
	logger  core.Logger
}

func NewNotifier(mailSvc core.EmailService, logger core.Logger) *Notifier {
	return &Notifier{mailSvc: mailSvc, logger: logger}
}

// Notify never fails: problems are logged and swallowed.
// It reports whether a message was handed to the email service.
func (n *Notifier) Notify(id Identity, fileName string, tasks []task.Task) (sent bool) {
	if n == nil || n.mailSvc == nil || id.Email == "" || len(tasks) == 0 {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("schedule notification panicked", "user_id", id.UserID, fmt.Errorf("%v", r))
			sent = false
		}
	}()

	items := make([]task.NotificationItem, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, task.ItemFromTask(t))
	}
	msg := task.NewScheduleUpdatedMessage(mail.Address{Name: id.Name, Address: id.Email}, fileName, items)
	n.mailSvc.SendMessages(msg)
	n.logger.Info("schedule notification dispatched", "user_id", id.UserID, "assignments", len(items))
	return true
}
