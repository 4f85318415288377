package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"ForecastDrill/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// reader is the part of *kafka.Reader the consumer needs.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// writer is the part of *kafka.Writer used for dead letters.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads registered topics and fans messages out to a worker pool.
// Offsets are committed after a message is handled or dead-lettered.
type Consumer struct {
	cfg       *ConsumerConfig
	log       *logger.Logger
	readers   map[string]reader
	handlers  map[string]MessageHandler
	newReader func(topic string) reader
	dlq       writer
	hook      ConsumerHook
	metrics   *consumerMetrics

	msgChan  chan kafka.Message
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	partMu    sync.Mutex
	partLocks map[string]map[int]*sync.Mutex
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := newConsumer(cfg, func(topic string) reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.GroupID,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		})
	})

	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

func defaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		GroupID:     "default",
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
		Registerer:  prometheus.DefaultRegisterer,
	}
}

func newConsumer(cfg *ConsumerConfig, newReader func(string) reader) *Consumer {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Consumer{
		cfg:       cfg,
		log:       log.With(logger.String("component", "kafka_consumer")),
		readers:   make(map[string]reader),
		handlers:  make(map[string]MessageHandler),
		newReader: newReader,
		hook:      NoopHook{},
		metrics:   newConsumerMetrics(cfg.Registerer),
		msgChan:   make(chan kafka.Message, cfg.BufferSize),
		stopChan:  make(chan struct{}),
		partLocks: make(map[string]map[int]*sync.Mutex),
	}
}

// RegisterHandler registers a message handler for its topic. Must be called
// before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start launches the readers and the worker pool.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = c.newReader(topic)
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.wg.Add(1)
		go c.messageWorker()
	}

	var readers sync.WaitGroup
	for topic, r := range c.readers {
		readers.Add(1)
		go func(topic string, r reader) {
			defer readers.Done()
			c.consumeMessages(topic, r)
		}(topic, r)
	}

	// Workers drain msgChan until every reader has returned.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		readers.Wait()
		close(c.msgChan)
	}()

	c.log.Info("kafka consumer started",
		logger.Int("workers", c.cfg.WorkerCount),
		logger.Int("topics", len(c.readers)),
		logger.String("group_id", c.cfg.GroupID),
	)
	return nil
}

// Stop stops the consumer and waits for in-flight messages.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error

	c.stopOnce.Do(func() {
		close(c.stopChan)
		stopErr = c.waitForWg(ctx)

		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.log.Error("close reader", logger.String("topic", topic), logger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Error("close dlq writer", logger.Error(err))
			}
		}
		if stopErr == nil {
			c.log.Info("kafka consumer stopped")
		}
	})

	return stopErr
}

func (c *Consumer) waitForWg(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
	case <-done:
		return nil
	}
}

func (c *Consumer) consumeMessages(topic string, r reader) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("fetch message", logger.String("topic", topic), logger.Error(err))
			select {
			case <-time.After(c.cfg.BackoffMin):
				continue
			case <-c.stopChan:
				return
			}
		}
		if msg.Topic == "" {
			msg.Topic = topic
		}

		// Blocking send applies backpressure to the reader.
		select {
		case c.msgChan <- msg:
			c.metrics.queueDepth.WithLabelValues(topic).Set(float64(len(c.msgChan)))
		case <-c.stopChan:
			return
		}
	}
}

func (c *Consumer) messageWorker() {
	defer c.wg.Done()
	for msg := range c.msgChan {
		c.process(msg)
	}
}

func (c *Consumer) process(msg kafka.Message) {
	handler, ok := c.handlers[msg.Topic]
	if !ok {
		return
	}
	start := time.Now()
	defer func() {
		c.metrics.handleLatency.WithLabelValues(msg.Topic).Observe(time.Since(start).Seconds())
	}()

	// Max one in-flight message per (topic, partition).
	pl := c.partitionLock(msg.Topic, msg.Partition)
	pl.Lock()
	defer pl.Unlock()

	err := c.handleWithRetry(handler, msg)
	if err != nil {
		c.metrics.failures.WithLabelValues(msg.Topic).Inc()
		c.log.Error("message handling failed",
			logger.String("topic", msg.Topic),
			logger.Int("partition", msg.Partition),
			logger.Int64("offset", msg.Offset),
			logger.Error(err),
		)
		select {
		case <-c.stopChan:
			return
		default:
		}
		if !c.deadLetter(msg, err) {
			// Leave uncommitted so the group redelivers it.
			return
		}
	}

	if r := c.readers[msg.Topic]; r != nil {
		_ = c.commitWithRetry(r, msg, 3)
	}
}

func (c *Consumer) handleWithRetry(handler MessageHandler, msg kafka.Message) (err error) {
	for attempt := 1; ; attempt++ {
		err = c.handleOnce(handler, msg)
		if err == nil || attempt > c.cfg.RetryMax {
			return err
		}
		c.hook.OnError(context.Background(), msg.Topic, msg, msg.Value, err)
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.stopChan:
			return err
		}
	}
}

func (c *Consumer) handleOnce(handler MessageHandler, msg kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler for %s: %v", msg.Topic, r)
		}
	}()

	ctx, hmsg, data, err := c.hook.BeforeHandle(context.Background(), msg.Topic, msg, msg.Value)
	if err != nil {
		return err
	}
	err = handler.Handle(ctx, data)
	c.hook.AfterHandle(ctx, msg.Topic, hmsg, data, err)
	return err
}

func (c *Consumer) deadLetter(msg kafka.Message, cause error) bool {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		return false
	}
	err := c.dlq.WriteMessages(context.Background(), kafka.Message{
		Topic: c.cfg.DLQTopic,
		Key:   msg.Key,
		Value: msg.Value,
		Time:  time.Now(),
		Headers: append(append([]kafka.Header(nil), msg.Headers...),
			kafka.Header{Key: "source_topic", Value: []byte(msg.Topic)},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
		),
	})
	if err != nil {
		c.log.Error("write dlq", logger.String("topic", c.cfg.DLQTopic), logger.Error(err))
		return false
	}
	return true
}

// commitWithRetry commits a single message offset with bounded retries.
func (c *Consumer) commitWithRetry(r reader, msg kafka.Message, max int) error {
	if max <= 0 {
		max = 1
	}
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, msg)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("commit offset", logger.Int("attempts", max), logger.Error(err))
	return err
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.partMu.Lock()
	defer c.partMu.Unlock()

	m, ok := c.partLocks[topic]
	if !ok {
		m = make(map[int]*sync.Mutex)
		c.partLocks[topic] = m
	}
	l, ok := m[partition]
	if !ok {
		l = &sync.Mutex{}
		m[partition] = l
	}
	return l
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 32 {
		if d := min << uint(attempt-1); d > 0 && d < max {
			exp = d
		}
	}
	// jitter up to 50%
	half := int64(exp) / 2
	if half <= 0 {
		return exp
	}
	return exp - time.Duration(rand.Int63n(half))
}

type consumerMetrics struct {
	queueDepth    *prometheus.GaugeVec
	handleLatency *prometheus.HistogramVec
	failures      *prometheus.CounterVec
}

func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	factory := promauto.With(reg)
	return &consumerMetrics{
		queueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{Name: "forecastdrill_kafka_consumer_queue_depth", Help: "Number of messages waiting in consumer queue"},
			[]string{"topic"},
		),
		handleLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{Name: "forecastdrill_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "forecastdrill_kafka_consumer_failures_total", Help: "Messages that exhausted retries"},
			[]string{"topic"},
		),
	}
}
