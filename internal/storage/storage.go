package storage

import (
	"context"
	"errors"

	"proposalRelay/internal/model"
)

// Journal records notification attempts. It is write-only.
type Journal interface {
	PutNotification(ctx context.Context, record model.NotificationRecord) error
}

// MultiJournal writes each record to every journal.
type MultiJournal []Journal

func (m MultiJournal) PutNotification(ctx context.Context, record model.NotificationRecord) error {
	var errs []error
	for _, j := range m {
		if err := j.PutNotification(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
