// Package jobs consumes export jobs from Kafka and publishes the finished
// archives to S3.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// redeliveryDelay spaces out attempts at a job that failed without being marked.
const redeliveryDelay = 5 * time.Second

// MessageHandler processes one message. shouldMark=false leaves the message
// unmarked; the claim then ends and the message is delivered again before any
// later offset on its partition.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) (shouldMark bool, err error)
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler MessageHandler
	Logger  logrus.FieldLogger
}

type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	topic   string
	groupID string
	log     logrus.FieldLogger
	ready   chan bool
}

func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("jobs: brokers, topic and group id are required")
	}
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, err
	}
	return newConsumer(group, cfg), nil
}

func newConsumer(group sarama.ConsumerGroup, cfg ConsumerConfig) *Consumer {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Consumer{
		group:   group,
		handler: cfg.Handler,
		topic:   cfg.Topic,
		groupID: cfg.GroupID,
		log:     log.WithFields(logrus.Fields{"topic": cfg.Topic, "group": cfg.GroupID}),
		ready:   make(chan bool),
	}
}

// Start joins the group and returns once the first session is set up, or when
// ctx ends first. Consumption continues in the background until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	h := &groupHandler{handler: c.handler, log: c.log, ready: c.ready, retryDelay: redeliveryDelay}

	go func() {
		for {
			if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.log.WithError(err).Error("kafka consume failed")
			}
			if ctx.Err() != nil {
				return
			}
			h.ready = make(chan bool)
		}
	}()

	go func() {
		for err := range c.group.Errors() {
			c.log.WithError(err).Error("kafka consumer error")
		}
	}()

	select {
	case <-c.ready:
		c.log.Info("export job consumer started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) Close() error {
	c.log.Info("closing export job consumer")
	return c.group.Close()
}

type groupHandler struct {
	handler MessageHandler
	log     logrus.FieldLogger
	ready   chan bool
	// retryDelay is waited before giving up a claim on an unmarked failure.
	retryDelay time.Duration
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	select {
	case <-h.ready:
	default:
		close(h.ready)
	}
	return nil
}

func (h *groupHandler) wait(ctx context.Context) {
	if h.retryDelay <= 0 {
		return
	}
	t := time.NewTimer(h.retryDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok || msg == nil {
				return nil
			}
			log := h.log.WithFields(logrus.Fields{"partition": msg.Partition, "offset": msg.Offset})
			log.Debug("export job received")

			mark, err := h.handler.HandleMessage(session.Context(), msg.Value)
			if err != nil {
				log.WithError(err).WithField("marked", mark).Error("export job failed")
			}
			if mark {
				session.MarkMessage(msg, "")
				continue
			}
			// Offsets commit cumulatively: marking anything after this message
			// would skip it. End the claim so the group resumes from it.
			h.wait(session.Context())
			if err == nil {
				err = fmt.Errorf("export job at offset %d left unmarked", msg.Offset)
			}
			return err
		case <-session.Context().Done():
			return nil
		}
	}
}
