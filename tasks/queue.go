package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/robfig/cron/v3"
	"github.com/tebben/riool/metrics"
	"github.com/tebben/riool/settings"

	log "github.com/sirupsen/logrus"
)

const (
	TopicProcessUpload   = "upload.process"
	TopicComputeCapacity = "capacity.compute"
)

// Processor does the work behind the queued tasks.
type Processor interface {
	ProcessUpload(ctx context.Context, uploadID int64) error
	// ComputePending computes the lost capacity of every upload that has
	// none yet.
	ComputePending(ctx context.Context) error
}

type uploadPayload struct {
	UploadID int64 `json:"upload_id"`
}

// Queue runs background tasks in process. Tasks published before Run are
// lost, wait for Running before publishing.
type Queue struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	cron   *cron.Cron
	logger watermill.LoggerAdapter
}

func NewQueue(config settings.TasksConfig) (*Queue, error) {
	logger := newLogger()

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 30 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("create task router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	if config.MaxRetries > 0 {
		retry := middleware.Retry{
			MaxRetries:      config.MaxRetries,
			InitialInterval: time.Second,
			MaxInterval:     time.Minute,
			Multiplier:      2,
			Logger:          logger,
		}
		router.AddMiddleware(retry.Middleware)
	}

	q := &Queue{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger),
		router: router,
		cron:   cron.New(),
		logger: logger,
	}

	if config.SweepSchedule != "" {
		_, err := q.cron.AddFunc(config.SweepSchedule, func() {
			if err := q.ComputeLostCapacityAsync(); err != nil {
				log.Errorf("Failed to schedule lost capacity computation: %v", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("invalid sweep schedule %q: %w", config.SweepSchedule, err)
		}
	}

	return q, nil
}

// Register adds the task handlers, it must be called before Run.
func (q *Queue) Register(p Processor) {
	q.router.AddNoPublisherHandler("process_upload", TopicProcessUpload, q.pubsub, func(msg *message.Message) error {
		var payload uploadPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			// a malformed message never gets better, drop it
			log.Errorf("Invalid %s message %s: %v", TopicProcessUpload, msg.UUID, err)
			return nil
		}

		start := time.Now()
		err := p.ProcessUpload(msg.Context(), payload.UploadID)
		metrics.TaskDuration.WithLabelValues(TopicProcessUpload).Observe(time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("process upload %d: %w", payload.UploadID, err)
		}
		return nil
	})

	q.router.AddNoPublisherHandler("compute_capacity", TopicComputeCapacity, q.pubsub, func(msg *message.Message) error {
		start := time.Now()
		err := p.ComputePending(msg.Context())
		metrics.TaskDuration.WithLabelValues(TopicComputeCapacity).Observe(time.Since(start).Seconds())
		return err
	})
}

// Run processes tasks until the context is done or Close is called.
func (q *Queue) Run(ctx context.Context) error {
	q.cron.Start()
	defer q.cron.Stop()

	return q.router.Run(ctx)
}

// Running is closed once handlers are subscribed.
func (q *Queue) Running() chan struct{} {
	return q.router.Running()
}

// IsRunning reports whether handlers are subscribed.
func (q *Queue) IsRunning() bool {
	select {
	case <-q.router.Running():
		return true
	default:
		return false
	}
}

func (q *Queue) Close() error {
	if err := q.router.Close(); err != nil {
		return err
	}
	return q.pubsub.Close()
}

func (q *Queue) ProcessUploadAsync(uploadID int64) error {
	payload, err := json.Marshal(uploadPayload{UploadID: uploadID})
	if err != nil {
		return err
	}
	return q.publish(TopicProcessUpload, payload)
}

func (q *Queue) ComputeLostCapacityAsync() error {
	return q.publish(TopicComputeCapacity, []byte("{}"))
}

func (q *Queue) publish(topic string, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := q.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	log.Debugf("Queued %s task %s", topic, msg.UUID)
	return nil
}
