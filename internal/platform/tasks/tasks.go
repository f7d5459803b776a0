package tasks

import (
	"context"

	"boatresearch/internal/platform/redis"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeIngest = "listings:ingest"

	QueueDefault = "default"
)

type Client struct{ c *asynq.Client }

func New(r *redis.Service) *Client { return &Client{c: asynq.NewClient(r.AsynqRedisOpt())} }

func (t *Client) Close() error { return t.c.Close() }

// Enqueue submits task and returns the id asynq assigned to it.
func (t *Client) Enqueue(task *asynq.Task, queue string, maxRetries int) (string, error) {
	info, err := t.c.Enqueue(task, asynq.Queue(queue), asynq.MaxRetry(maxRetries))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

type Mux struct{ mux *asynq.ServeMux }

func NewMux() *Mux { return &Mux{mux: asynq.NewServeMux()} }

func (m *Mux) HandleFunc(t string, h func(ctx context.Context, task *asynq.Task) error) {
	m.mux.HandleFunc(t, h)
}

func (m *Mux) Mux() *asynq.ServeMux { return m.mux }

// NewServer builds the worker server that drains QueueDefault.
func NewServer(r *redis.Service, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 4
	}
	return asynq.NewServer(r.AsynqRedisOpt(), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueDefault: 1},
	})
}
