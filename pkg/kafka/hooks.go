package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ForecastDrill/pkg/logger"
)

// ConsumerHook runs around message handling. Returning an error from
// BeforeHandle skips the handler and counts as a failed attempt.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return ctx, km, data, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {}

func (NoopHook) OnError(context.Context, string, kafka.Message, []byte, error) {}

// HookFuncs adapts plain functions to ConsumerHook. Nil funcs are no-ops.
type HookFuncs struct {
	Before func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error)
	After  func(context.Context, string, kafka.Message, []byte, error)
	Err    func(context.Context, string, kafka.Message, []byte, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	if h.Before == nil {
		return ctx, km, data, nil
	}
	return h.Before(ctx, topic, km, data)
}

func (h HookFuncs) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	if h.After != nil {
		h.After(ctx, topic, km, data, err)
	}
}

func (h HookFuncs) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	if h.Err != nil {
		h.Err(ctx, topic, km, data, err)
	}
}

// HookChain runs BeforeHandle in order and AfterHandle in reverse. A panic in
// any hook is turned into an error instead of reaching the worker.
type HookChain struct {
	hooks []ConsumerHook
}

// NewHookChain creates a hook chain. Nil hooks are ignored.
func NewHookChain(hooks ...ConsumerHook) *HookChain {
	filtered := make([]ConsumerHook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	return &HookChain{hooks: filtered}
}

func (c *HookChain) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	for _, h := range c.hooks {
		nextCtx, nextMsg, nextData, err := safeBefore(h, ctx, topic, km, data)
		if err != nil {
			c.OnError(ctx, topic, km, data, err)
			return ctx, km, data, err
		}
		ctx, km, data = nextCtx, nextMsg, nextData
	}
	return ctx, km, data, nil
}

func (c *HookChain) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	for i := len(c.hooks) - 1; i >= 0; i-- {
		h := c.hooks[i]
		func() {
			defer func() { _ = recover() }()
			h.AfterHandle(ctx, topic, km, data, err)
		}()
	}
}

func (c *HookChain) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	for _, h := range c.hooks {
		func() {
			defer func() { _ = recover() }()
			h.OnError(ctx, topic, km, data, err)
		}()
	}
}

func safeBefore(h ConsumerHook, ctx context.Context, topic string, km kafka.Message, data []byte) (nctx context.Context, nkm kafka.Message, ndata []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			nctx, nkm, ndata, err = ctx, km, data, fmt.Errorf("hook panic: %v", r)
		}
	}()
	return h.BeforeHandle(ctx, topic, km, data)
}

type ctxKey string

const (
	ctxStartTime ctxKey = "kafka_hook_start_time"
	ctxTraceID   ctxKey = "kafka_hook_trace_id"
)

// TraceHeader carries the correlation id between producer and consumer.
const TraceHeader = "trace_id"

// TraceID returns the correlation id put on ctx by TraceHook.
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(ctxTraceID).(string)
	return v
}

// TraceHook copies the TraceHeader value into the handler context.
func TraceHook() ConsumerHook {
	return HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			for _, h := range km.Headers {
				if h.Key == TraceHeader && len(h.Value) > 0 {
					ctx = context.WithValue(ctx, ctxTraceID, string(h.Value))
					break
				}
			}
			return ctx, km, data, nil
		},
	}
}

// LoggingHook logs each handled message at debug and each failure at warn.
func LoggingHook(log *logger.Logger) ConsumerHook {
	return HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			return context.WithValue(ctx, ctxStartTime, time.Now()), km, data, nil
		},
		After: func(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
			if err != nil {
				return
			}
			fields := []logger.Field{
				logger.String("topic", topic),
				logger.Int64("offset", km.Offset),
				logger.String("trace_id", TraceID(ctx)),
			}
			if start, ok := ctx.Value(ctxStartTime).(time.Time); ok {
				fields = append(fields, logger.Duration("duration_ms", time.Since(start)))
			}
			log.Debug("message handled", fields...)
		},
		Err: func(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
			log.Warn("message attempt failed",
				logger.String("topic", topic),
				logger.Int64("offset", km.Offset),
				logger.String("trace_id", TraceID(ctx)),
				logger.Error(err),
			)
		},
	}
}
