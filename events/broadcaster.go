package events

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/poexist/poe/claim"
	"github.com/poexist/poe/logging"
)

var droppedMetric = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "poe",
	Subsystem: "events",
	Name:      "dropped_total",
	Help:      "Number of events dropped because a subscriber was too slow",
})

const DefaultSubscriberBuffer = 256

// Broadcaster fans events out to subscribers.
// Emit never blocks: a subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan claim.Event]struct{}
	buffer int
}

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Broadcaster{
		subs:   make(map[chan claim.Event]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber. The returned channel is closed
// once ctx is done.
func (b *Broadcaster) Subscribe(ctx context.Context) <-chan claim.Event {
	ch := make(chan claim.Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) Emit(ctx context.Context, ev claim.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			droppedMetric.Inc()
			logging.FromContext(ctx).Debug("subscriber too slow - dropping event", zap.Object("event", ev))
		}
	}
	return nil
}
