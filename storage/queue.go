package storage

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

// Queue writes task event envelopes to an Azure Storage queue.
type Queue struct {
	client *azqueue.QueueClient
}

// NewQueue creates a Queue for the named queue.
func NewQueue(connStr, name string) (*Queue, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	qc, err := azqueue.NewQueueClientFromConnectionString(connStr, name, &opts)
	if err != nil {
		return nil, err
	}
	return &Queue{client: qc}, nil
}

func (q *Queue) EnqueueMessage(ctx context.Context, content string) error {
	_, err := q.client.EnqueueMessage(ctx, content, nil)
	return err
}
