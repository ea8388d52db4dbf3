package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}
}

func (c *Client) Queue() string {
	return c.queue
}

// EnqueueExport schedules an export. Exports of the same image within the
// uniqueness window collapse into one task.
func (c *Client) EnqueueExport(ctx context.Context, payload ExportImagePayload) (*asynq.TaskInfo, error) {
	task, err := NewExportImageTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
		asynq.Unique(30*time.Second),
	)
}

func (c *Client) Close() error {
	return c.client.Close()
}
