package storage

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"
)

const queueAlreadyExists = "QueueAlreadyExists"

func hasErrorCode(err error, code string) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == code
}

// CreateTables creates the named tables. Existing tables and empty names are skipped.
func CreateTables(ctx context.Context, connStr string, names ...string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, err := svc.NewClient(name).CreateTable(ctx, nil); err != nil {
			if !hasErrorCode(err, string(aztables.TableAlreadyExists)) {
				return err
			}
			log.WithField("table", name).Debug("table already exists")
			continue
		}
		log.WithField("table", name).Info("table created")
	}
	return nil
}

// CreateQueues creates the named queues. Existing queues and empty names are skipped.
func CreateQueues(ctx context.Context, connStr string, names ...string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
		if err != nil {
			return err
		}
		if _, err := q.Create(ctx, nil); err != nil {
			if !hasErrorCode(err, queueAlreadyExists) {
				return err
			}
			log.WithField("queue", name).Debug("queue already exists")
			continue
		}
		log.WithField("queue", name).Info("queue created")
	}
	return nil
}
