package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

var ErrUnhandledEvent = errors.New("no handler registered for event type")

// Handler processes one event. Its result is encoded as the HTTP response
// body, so card callbacks return a *CallbackResponse.
type Handler func(ctx context.Context, evt *Event) (any, error)

type HandlerOption func(*registration)

// Async runs the handler off the request path. The caller gets an empty
// response immediately and the handler's result is discarded; errors are logged.
func Async() HandlerOption {
	return func(r *registration) {
		r.async = true
	}
}

type registration struct {
	handler Handler
	async   bool
}

// Dispatcher is a registry from event type to handler.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]registration
	wg       conc.WaitGroup
	logger   *zap.Logger
}

func NewDispatcher() *Dispatcher {
	logger, _ := zap.NewProduction()
	return NewDispatcherWithLogger(logger)
}

func NewDispatcherWithLogger(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		handlers: make(map[string]registration),
		logger:   logger,
	}
}

// Register binds handler to eventType, replacing any earlier registration.
func (d *Dispatcher) Register(eventType string, handler Handler, opts ...HandlerOption) {
	r := registration{handler: handler}
	for _, opt := range opts {
		opt(&r)
	}
	d.mu.Lock()
	d.handlers[eventType] = r
	d.mu.Unlock()
	d.logger.Debug("Registered event handler", zap.String("event_type", eventType), zap.Bool("async", r.async))
}

// Registered reports whether eventType has a handler.
func (d *Dispatcher) Registered(eventType string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[eventType]
	return ok
}

// Dispatch invokes the handler registered for eventType. Async handlers get a
// context detached from ctx's cancellation and Dispatch returns an empty object.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, evt *Event) (any, error) {
	d.mu.RLock()
	r, ok := d.handlers[eventType]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEvent, eventType)
	}

	if !r.async {
		return r.handler(ctx, evt)
	}

	detached := context.WithoutCancel(ctx)
	d.wg.Go(func() {
		if _, err := r.handler(detached, evt); err != nil {
			d.logger.Error("Async event handler failed",
				zap.String("event_type", eventType),
				zap.String("event_id", evt.Header.EventID),
				zap.Error(err))
		}
	})
	return struct{}{}, nil
}

// Wait blocks until every async handler started so far has returned. A panic
// in an async handler is logged here instead of crashing the process.
func (d *Dispatcher) Wait() {
	if r := d.wg.WaitAndRecover(); r != nil {
		d.logger.Error("Async event handler panicked", zap.String("panic", r.String()))
	}
}
