package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ErrQueueFull is returned when the in-process queue cannot take another notification
var ErrQueueFull = errors.New("notification queue is full")

// Handler processes one calendar channel notification
type Handler func(ctx context.Context, channelID, resourceState string) error

// CalendarNotification is the message carried between the webhook receiver and the processor
type CalendarNotification struct {
	ChannelID     string    `json:"channel_id"`
	ResourceState string    `json:"resource_state"`
	ReceivedAt    time.Time `json:"received_at"`
}

// PubSubDispatcher publishes accepted notifications to a topic and processes them from
// the topic's subscription, so a restart does not lose them.
type PubSubDispatcher struct {
	client    *pubsub.Client
	topic     *pubsub.Topic
	topicName string
	subName   string
	handler   Handler
	logger    *zap.Logger
}

func NewPubSubDispatcher(ctx context.Context, projectID, topicName, credentialsFile string, handler Handler, logger *zap.Logger) (*PubSubDispatcher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &PubSubDispatcher{
		client:    client,
		topic:     client.Topic(topicName),
		topicName: topicName,
		subName:   topicName + "-sub", // Convention: topic-sub
		handler:   handler,
		logger:    logger.Named("pubsub"),
	}, nil
}

// Publish sends the notification without waiting for the server acknowledgement
func (d *PubSubDispatcher) Publish(ctx context.Context, channelID, resourceState string) error {
	data, err := json.Marshal(CalendarNotification{ChannelID: channelID, ResourceState: resourceState, ReceivedAt: time.Now()})
	if err != nil {
		return err
	}

	result := d.topic.Publish(ctx, &pubsub.Message{Data: data})
	go func() {
		if _, err := result.Get(context.Background()); err != nil {
			d.logger.Error("publish notification", zap.String("channel_id", channelID), zap.Error(err))
		}
	}()
	return nil
}

// Start makes sure the subscription exists and processes messages until ctx ends
func (d *PubSubDispatcher) Start(ctx context.Context) {
	sub := d.client.Subscription(d.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		d.logger.Error("check subscription", zap.String("subscription", d.subName), zap.Error(err))
		return
	}

	if !exists {
		topicExists, err := d.topic.Exists(ctx)
		if err != nil {
			d.logger.Error("check topic", zap.String("topic", d.topicName), zap.Error(err))
			return
		}
		if !topicExists {
			d.logger.Error("topic does not exist, cannot create subscription", zap.String("topic", d.topicName))
			return
		}

		sub, err = d.client.CreateSubscription(ctx, d.subName, pubsub.SubscriptionConfig{
			Topic:       d.topic,
			AckDeadline: 60 * time.Second,
		})
		if err != nil {
			d.logger.Error("create subscription", zap.String("subscription", d.subName), zap.Error(err))
			return
		}
		d.logger.Info("created subscription", zap.String("subscription", d.subName))
	}

	d.logger.Info("listening for notifications", zap.String("subscription", d.subName))
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		d.handleMessage(ctx, msg.Data)
		msg.Ack()
	})
	if err != nil {
		d.logger.Error("receive notifications", zap.Error(err))
	}
}

func (d *PubSubDispatcher) handleMessage(ctx context.Context, data []byte) {
	var n CalendarNotification
	if err := json.Unmarshal(data, &n); err != nil {
		d.logger.Warn("malformed notification dropped", zap.Error(err))
		return
	}
	if err := d.handler(ctx, n.ChannelID, n.ResourceState); err != nil {
		d.logger.Warn("process notification", zap.String("channel_id", n.ChannelID), zap.Error(err))
	}
}

// Close flushes pending publishes and releases the client
func (d *PubSubDispatcher) Close() error {
	d.topic.Stop()
	return d.client.Close()
}

// LocalDispatcher processes notifications on an in-process worker. Notifications for a
// channel already waiting are coalesced.
type LocalDispatcher struct {
	handler Handler
	queue   chan CalendarNotification
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]bool
	closed  bool
	wg      sync.WaitGroup
}

func NewLocalDispatcher(handler Handler, size int, logger *zap.Logger) *LocalDispatcher {
	if size <= 0 {
		size = 256
	}
	return &LocalDispatcher{
		handler: handler,
		queue:   make(chan CalendarNotification, size),
		logger:  logger.Named("notifications"),
		pending: make(map[string]bool),
	}
}

// Start launches the worker
func (d *LocalDispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for n := range d.queue {
			d.mu.Lock()
			delete(d.pending, n.ChannelID)
			d.mu.Unlock()

			if err := d.handler(context.Background(), n.ChannelID, n.ResourceState); err != nil {
				d.logger.Warn("process notification", zap.String("channel_id", n.ChannelID), zap.Error(err))
			}
		}
	}()
}

func (d *LocalDispatcher) Publish(_ context.Context, channelID, resourceState string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrQueueFull
	}
	if d.pending[channelID] {
		return nil
	}
	select {
	case d.queue <- CalendarNotification{ChannelID: channelID, ResourceState: resourceState, ReceivedAt: time.Now()}:
		d.pending[channelID] = true
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting notifications and waits for queued ones to finish
func (d *LocalDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}
