package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Maestro-111/search-engine/config"
	"github.com/Maestro-111/search-engine/infra"
	"github.com/Maestro-111/search-engine/infra/produce"
	"github.com/Maestro-111/search-engine/repository"
)

const (
	chainPrefetch   = 10
	chainMaxRetries = 3
)

// ChainConsumer feeds run and poll messages into a StatusPoller.
type ChainConsumer struct {
	channel *amqp.Channel
	infra   *infra.Infra
	poller  *StatusPoller
	loops   sync.WaitGroup
}

func NewChainConsumer(channel *amqp.Channel, cfg *config.Config, infra *infra.Infra, repo *repository.Repository) *ChainConsumer {
	opts := PollerOptionsFromConfig(cfg.EnvConfig)
	poller := NewStatusPoller(infra.JobService, repo.TrackedJobRepo, infra.Produce.ChainService, infra.Logger, opts)

	return &ChainConsumer{
		channel: channel,
		infra:   infra,
		poller:  poller,
	}
}

func (c *ChainConsumer) Start(ctx context.Context) error {
	if err := c.channel.Qos(chainPrefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set chain consumer prefetch: %w", err)
	}

	if err := c.startRunConsumer(ctx); err != nil {
		return fmt.Errorf("failed to start chain run consumer: %w", err)
	}
	if err := c.startPollConsumer(ctx); err != nil {
		return fmt.Errorf("failed to start chain poll consumer: %w", err)
	}

	return nil
}

func (c *ChainConsumer) startRunConsumer(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		produce.ChainRunQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register chain run consumer: %w", err)
	}

	c.infra.Logger.InfoWithContextf(ctx, "[Chain Consumer] Started listening for run jobs on queue: %s", produce.ChainRunQueue)

	c.spawn(ctx, "Run", msgs, c.handleRun)
	return nil
}

func (c *ChainConsumer) startPollConsumer(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		produce.ChainPollQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register chain poll consumer: %w", err)
	}

	c.infra.Logger.InfoWithContextf(ctx, "[Chain Consumer] Started listening for status checks on queue: %s", produce.ChainPollQueue)

	c.spawn(ctx, "Poll", msgs, c.handlePoll)
	return nil
}

// Wait blocks until every consumer loop has returned, including a message
// that was being handled when ctx ended. Call it before closing the channel.
func (c *ChainConsumer) Wait() {
	c.loops.Wait()
}

func (c *ChainConsumer) spawn(ctx context.Context, name string, msgs <-chan amqp.Delivery, handle func(context.Context, amqp.Delivery)) {
	c.loops.Add(1)
	go func() {
		defer c.loops.Done()
		c.loop(ctx, name, msgs, handle)
	}()
}

func (c *ChainConsumer) loop(ctx context.Context, name string, msgs <-chan amqp.Delivery, handle func(context.Context, amqp.Delivery)) {
	for {
		select {
		case <-ctx.Done():
			c.infra.Logger.InfoWithContextf(ctx, "[Chain Consumer - %s] Shutting down...", name)
			return
		case msg, ok := <-msgs:
			if !ok {
				c.infra.Logger.WarningWithContextf(ctx, "[Chain Consumer - %s] Channel closed", name)
				return
			}
			handle(ctx, msg)
		}
	}
}

func (c *ChainConsumer) handleRun(ctx context.Context, msg amqp.Delivery) {
	var payload produce.RunJobMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Chain Consumer - Run] Failed to unmarshal message: %v", err)
		_ = msg.Nack(false, false)
		return
	}

	id, err := uuid.Parse(payload.TrackedJobID)
	if err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Chain Consumer - Run] Invalid tracked job ID: %v", err)
		_ = msg.Nack(false, false)
		return
	}

	c.settle(ctx, "Run", msg, func() error {
		return c.poller.HandleRun(ctx, id)
	})
}

func (c *ChainConsumer) handlePoll(ctx context.Context, msg amqp.Delivery) {
	var payload produce.PollStatusMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Chain Consumer - Poll] Failed to unmarshal message: %v", err)
		_ = msg.Nack(false, false)
		return
	}

	id, err := uuid.Parse(payload.TrackedJobID)
	if err != nil || payload.RemoteJobID == "" {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Chain Consumer - Poll] Invalid poll message: %s", string(msg.Body))
		_ = msg.Nack(false, false)
		return
	}

	c.settle(ctx, "Poll", msg, func() error {
		return c.poller.HandlePoll(ctx, id, payload.RemoteJobID, payload.Attempt)
	})
}

// settle retries handle a few times, then acks or requeues msg.
func (c *ChainConsumer) settle(ctx context.Context, name string, msg amqp.Delivery, handle func() error) {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, handle()
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(chainMaxRetries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.infra.Logger.ErrorWithContextf(ctx, err, "[Chain Consumer - %s] Attempt failed, retrying in %s: %v", name, next, err)
		}),
	)
	if err == nil {
		_ = msg.Ack(false)
		return
	}

	c.infra.Logger.ErrorWithContextf(ctx, err, "[Chain Consumer - %s] Failed after %d attempts, requeueing message", name, chainMaxRetries)
	_ = msg.Nack(false, true)
}
