// Package pubsub provides an in-process publish/subscribe broker as a
// singleton provider.
package pubsub

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/alecthomas/errors"
	"go.jetify.com/typeid/v2"

	"github.com/alecthomas/providence"
	"github.com/alecthomas/providence/providers/logging"
)

// ErrTopicFull is returned by Publish when a topic's buffer is full.
var ErrTopicFull = errors.New("topic is full")

// Event is a typed message envelope with a unique, type-prefixed ID.
type Event[T any] struct {
	ID      string
	Created time.Time
	Payload T
}

// NewEvent wraps a payload in an [Event] with a generated ID.
func NewEvent[T any](payload T) Event[T] {
	return Event[T]{
		ID:      NewID[T](),
		Created: time.Now(),
		Payload: payload,
	}
}

// NewID returns a unique identifier for the given type: a
// [TypeID](https://github.com/jetify-com/typeid) with the snake-cased type
// name as the prefix.
func NewID[T any]() string {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return typeid.MustGenerate(snakeCase(t.Name())).String()
}

// snakeCase converts CamelCase to snake_case, keeping only what a TypeID
// prefix permits.
func snakeCase(name string) string {
	out := &strings.Builder{}
	for i, r := range name {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				out.WriteRune('_')
			}
			out.WriteRune(unicode.ToLower(r))
		case unicode.IsLower(r) || unicode.IsDigit(r):
			out.WriteRune(r)
		}
	}
	return strings.Trim(out.String(), "_")
}

// Provider is the broker singleton.
var Provider *providence.Provider

var broker *providence.Field[*Broker]

func init() {
	Provider = providence.MustDeclare("pubsub",
		providence.Requires(logging.Provider),
		providence.Init(initialize),
	)
	broker = providence.NewField[*Broker](Provider, "broker")
}

func initialize(ctx context.Context) error {
	logger, err := logging.Logger(ctx)
	if err != nil {
		return err
	}
	return broker.Set(ctx, &Broker{
		logger: logger,
		topics: map[string]chan any{},
	})
}

// Broker routes events between topics. All access goes through the guarded
// [Publish] and [Subscribe] entry points.
type Broker struct {
	lock   sync.Mutex
	logger *slog.Logger
	topics map[string]chan any
}

func (b *Broker) topic(name string) chan any {
	b.lock.Lock()
	defer b.lock.Unlock()
	ch, ok := b.topics[name]
	if !ok {
		ch = make(chan any, 128)
		b.topics[name] = ch
	}
	return ch
}

// Publish an event to a topic, initializing the broker on first use.
//
// Delivery is asynchronous; if the topic's buffer is full, [ErrTopicFull] is
// returned.
func Publish[T any](ctx context.Context, topic string, payload T) error {
	b, err := broker.Get(ctx)
	if err != nil {
		return err
	}
	select {
	case b.topic(topic) <- NewEvent(payload):
		return nil
	default:
		return errors.Errorf("%s: %w", topic, ErrTopicFull)
	}
}

// Subscribe to a topic, initializing the broker on first use. The handler
// runs on a background goroutine until ctx is cancelled. Handler errors are
// logged, not propagated.
//
// Subscribers on the same topic compete for events.
func Subscribe[T any](ctx context.Context, topic string, handler func(context.Context, Event[T]) error) error {
	b, err := broker.Get(ctx)
	if err != nil {
		return err
	}
	ch := b.topic(topic)
	go func() {
		for {
			select {
			case msg := <-ch:
				event, ok := msg.(Event[T])
				if !ok {
					b.logger.Error("Dropping event of unexpected type", "topic", topic, "type", reflect.TypeOf(msg).String())
					continue
				}
				if err := handler(ctx, event); err != nil {
					b.logger.Error("Failed to handle event", "topic", topic, "id", event.ID, "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
