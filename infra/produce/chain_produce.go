package produce

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ChainExchange = "job.chain.exchange"

	// ChainRunQueue carries requests to submit a tracked job to the job service
	ChainRunQueue      = "job.chain.run"
	ChainRunRoutingKey = "job.chain.run"

	// ChainPollQueue carries status checks for submitted jobs
	ChainPollQueue      = "job.chain.poll"
	ChainPollRoutingKey = "job.chain.poll"

	// ChainPollDelayQueuePrefix names the delay queues. Each delay queue has a
	// single queue-level TTL, so a message never waits behind a longer-lived
	// one, and dead-letters expired messages into ChainPollQueue
	ChainPollDelayQueuePrefix = "job.chain.poll.delay"

	// delayQueueIdle is how long an unused delay queue survives
	delayQueueIdle = 10 * time.Minute
)

// RunJobMessage asks the chain consumer to submit a tracked job
type RunJobMessage struct {
	TrackedJobID string `json:"tracked_job_id"`
	Timestamp    int64  `json:"timestamp"`
}

// PollStatusMessage asks the chain consumer to check a submitted job
type PollStatusMessage struct {
	TrackedJobID string `json:"tracked_job_id"`
	RemoteJobID  string `json:"remote_job_id"`
	Attempt      int    `json:"attempt"`
	Timestamp    int64  `json:"timestamp"`
}

type ChainProduceService struct {
	channel *amqp.Channel

	mu            sync.Mutex
	delayDeclared map[string]bool
}

func InitChainProduceService(channel *amqp.Channel) *ChainProduceService {
	service := &ChainProduceService{
		channel:       channel,
		delayDeclared: make(map[string]bool),
	}

	err := channel.ExchangeDeclare(
		ChainExchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare Chain exchange: " + err.Error())
	}

	bindings := map[string]string{
		ChainRunQueue:  ChainRunRoutingKey,
		ChainPollQueue: ChainPollRoutingKey,
	}
	for queue, routingKey := range bindings {
		if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			panic("Failed to declare queue " + queue + ": " + err.Error())
		}
		if err := channel.QueueBind(queue, routingKey, ChainExchange, false, nil); err != nil {
			panic("Failed to bind queue " + queue + ": " + err.Error())
		}
	}

	return service
}

func (s *ChainProduceService) PublishRun(ctx context.Context, trackedJobID string) error {
	message := RunJobMessage{
		TrackedJobID: trackedJobID,
		Timestamp:    time.Now().Unix(),
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	return s.channel.PublishWithContext(
		ctx,
		ChainExchange,
		ChainRunRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// PublishPoll schedules a status check after delay.
func (s *ChainProduceService) PublishPoll(ctx context.Context, message PollStatusMessage, delay time.Duration) error {
	message.Timestamp = time.Now().Unix()

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}

	if delay <= 0 {
		return s.channel.PublishWithContext(ctx, ChainExchange, ChainPollRoutingKey, false, false, publishing)
	}

	queue, ttl := delayQueueFor(delay)
	if err := s.ensureDelayQueue(queue, ttl); err != nil {
		return err
	}
	return s.channel.PublishWithContext(ctx, "", queue, false, false, publishing)
}

// delayQueueFor rounds delay to whole seconds and names the queue holding
// messages for that long.
func delayQueueFor(delay time.Duration) (string, time.Duration) {
	ttl := max(delay.Round(time.Second), time.Second)
	return fmt.Sprintf("%s.%ds", ChainPollDelayQueuePrefix, int64(ttl/time.Second)), ttl
}

func (s *ChainProduceService) ensureDelayQueue(queue string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.delayDeclared[queue] {
		return nil
	}

	_, err := s.channel.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange":    ChainExchange,
			"x-dead-letter-routing-key": ChainPollRoutingKey,
			"x-message-ttl":             ttl.Milliseconds(),
			"x-expires":                 (ttl + delayQueueIdle).Milliseconds(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare delay queue %s: %w", queue, err)
	}
	s.delayDeclared[queue] = true
	return nil
}
