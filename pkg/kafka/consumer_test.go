package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func (r *fakeReader) Close() error { return nil }

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func (w *fakeWriter) Close() error { return nil }

type flakyHandler struct {
	topic    string
	failures int

	mu    sync.Mutex
	calls int
	seen  [][]byte
	trace []string
}

func (h *flakyHandler) Topic() string { return h.topic }

func (h *flakyHandler) Handle(ctx context.Context, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	h.seen = append(h.seen, data)
	h.trace = append(h.trace, TraceID(ctx))
	return nil
}

func (h *flakyHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func testConsumer(t *testing.T, r *fakeReader, opts ...ConsumerOption) *Consumer {
	t.Helper()
	cfg := defaultConsumerConfig()
	cfg.Registerer = prometheus.NewRegistry()
	cfg.BackoffMin = time.Millisecond
	cfg.BackoffMax = 2 * time.Millisecond
	for _, opt := range opts {
		opt(cfg)
	}
	c := newConsumer(cfg, func(string) reader { return r })
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Stop(ctx)
	})
	return c
}

func TestConsumerHandlesAndCommits(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Topic: "results", Offset: 1, Value: []byte("a"),
			Headers: []kafka.Header{{Key: TraceHeader, Value: []byte("t-1")}}},
		kafka.Message{Topic: "results", Offset: 2, Value: []byte("b")},
	)
	h := &flakyHandler{topic: "results"}
	c := testConsumer(t, r)
	c.RegisterHandler(h)
	c.WithConsumerHook(NewHookChain(TraceHook(), NoopHook{}))
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return len(r.Committed()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []int64{1, 2}, r.Committed())
	assert.Contains(t, h.trace, "t-1")
}

func TestConsumerRetriesTransientFailures(t *testing.T) {
	r := newFakeReader(kafka.Message{Topic: "results", Offset: 7, Value: []byte("x")})
	h := &flakyHandler{topic: "results", failures: 2}
	c := testConsumer(t, r, WithConsumerRetry(3, time.Millisecond, 2*time.Millisecond))
	c.RegisterHandler(h)
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return len(r.Committed()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, h.Calls())
}

func TestConsumerDeadLettersExhaustedMessages(t *testing.T) {
	r := newFakeReader(kafka.Message{Topic: "results", Offset: 3, Value: []byte("poison")})
	h := &flakyHandler{topic: "results", failures: 100}
	c := testConsumer(t, r, WithConsumerRetry(1, time.Millisecond, time.Millisecond), WithConsumerDLQ("results.dlq"))
	dlq := &fakeWriter{}
	c.dlq = dlq
	c.RegisterHandler(h)
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return len(r.Committed()) == 1 }, time.Second, 5*time.Millisecond)
	written := dlq.Written()
	require.Len(t, written, 1)
	assert.Equal(t, "results.dlq", written[0].Topic)
	assert.Equal(t, []byte("poison"), written[0].Value)
	assert.Equal(t, 2, h.Calls())
}

func TestConsumerLeavesFailureUncommittedWithoutDLQ(t *testing.T) {
	r := newFakeReader(kafka.Message{Topic: "results", Offset: 4, Value: []byte("bad")})
	h := &flakyHandler{topic: "results", failures: 100}
	c := testConsumer(t, r, WithConsumerRetry(0, time.Millisecond, time.Millisecond))
	c.RegisterHandler(h)
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return h.Calls() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, r.Committed())
}

func TestStartWithoutHandlers(t *testing.T) {
	c := testConsumer(t, newFakeReader())
	assert.Error(t, c.Start())
}

func TestBackoffWithJitterIsCapped(t *testing.T) {
	for attempt := 1; attempt < 70; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.LessOrEqual(t, d, 100*time.Millisecond)
		assert.Greater(t, d, time.Duration(0))
	}
}

func TestHookChainRecoversPanics(t *testing.T) {
	var errs int
	chain := NewHookChain(
		HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("boom")
		}},
		HookFuncs{Err: func(context.Context, string, kafka.Message, []byte, error) { errs++ }},
	)
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, errs)
}
