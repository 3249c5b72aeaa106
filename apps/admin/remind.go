package main

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/task"
)

const remindConcurrency = 8

// remind emails every active user the unfinished tasks they have due within the window.
func (cli *commandLine) remind(within time.Duration) error {
	ctx := context.Background()
	now := time.Now().UTC()

	users, err := cli.usrSvc.QueryAll(ctx)
	if err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		msgs []*core.EmailMessage
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(remindConcurrency)
	for _, usr := range users {
		if !usr.IsActive {
			continue
		}
		usr := usr
		eg.Go(func() error {
			tasks, err := cli.taskSvc.QueryDueSoon(gctx, usr.ID, now, within)
			if err != nil {
				return fmt.Errorf("user #%d: %w", usr.ID, err)
			}
			if len(tasks) == 0 {
				return nil
			}
			msg := task.NewReminderMessage(mail.Address{Name: usr.Name, Address: usr.Email}, tasks)
			mu.Lock()
			msgs = append(msgs, msg)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	if len(msgs) > 0 {
		cli.mailSvc.SendMessages(msgs...)
		cli.waitForMail()
	}
	cli.logger.Info("task reminders sent", "users", len(msgs), "within", within.String())
	fmt.Fprintf(cli.out, "sent %d %s\n", len(msgs), core.Plural(len(msgs), "reminder"))
	return nil
}
