package grpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stuartshay/geo-session-engine/internal/engine"
	"github.com/stuartshay/geo-session-engine/internal/metrics"
	"github.com/stuartshay/geo-session-engine/internal/reward"
	"github.com/stuartshay/geo-session-engine/internal/territory"
)

// Store persists session outcomes
type Store interface {
	SaveTerritory(ctx context.Context, playerID string, claimed territory.Claimed) error
	SaveLedger(ctx context.Context, playerID string, ledger reward.Ledger) error
}

// Publisher forwards events to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, ev engine.Event) error
}

type outboxItem struct {
	event    *engine.Event
	playerID string
	ledger   *reward.Ledger
}

// Outbox moves events and ledger snapshots off the session workers and writes
// them to the store and the publisher in arrival order. It implements
// engine.Sink.
type Outbox struct {
	mu        sync.RWMutex
	closed    bool
	items     chan outboxItem
	store     Store
	publisher Publisher
	timeout   time.Duration
	holdWait  time.Duration
	done      chan struct{}
}

// NewOutbox starts the outbox writer. store and publisher may be nil.
func NewOutbox(size int, store Store, publisher Publisher) *Outbox {
	if size < 1 {
		size = 1
	}
	o := &Outbox{
		items:     make(chan outboxItem, size),
		store:     store,
		publisher: publisher,
		timeout:   5 * time.Second,
		holdWait:  2 * time.Second,
		done:      make(chan struct{}),
	}
	go o.run()
	return o
}

// Emit implements engine.Sink. Proximity and tier events never block and are
// dropped and counted when the buffer is full. A closed territory exists
// nowhere else, so Emit waits up to holdWait for room before dropping it.
func (o *Outbox) Emit(ev engine.Event) {
	metrics.EventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	var wait time.Duration
	if ev.Kind == engine.KindTerritoryClosed {
		wait = o.holdWait
	}
	o.enqueue(outboxItem{event: &ev, playerID: ev.PlayerID}, wait)
}

// SaveLedger queues a ledger snapshot for persistence, waiting up to holdWait
// for room
func (o *Outbox) SaveLedger(playerID string, ledger reward.Ledger) {
	o.enqueue(outboxItem{playerID: playerID, ledger: &ledger}, o.holdWait)
}

// Close stops accepting items and waits up to timeout for the buffer to drain
func (o *Outbox) Close(timeout time.Duration) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.items)
	o.mu.Unlock()

	select {
	case <-o.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("outbox drain timeout exceeded")
	}
}

func (o *Outbox) enqueue(item outboxItem, wait time.Duration) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		metrics.EventsDropped.Inc()
		return
	}

	select {
	case o.items <- item:
		return
	default:
	}

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case o.items <- item:
			return
		case <-timer.C:
		}
	}

	metrics.EventsDropped.Inc()
	entry := log.Warn()
	if item.ledger != nil || item.event.Kind == engine.KindTerritoryClosed {
		entry = log.Error()
	}
	entry.
		Str("player_id", item.playerID).
		Dur("waited", wait).
		Msg("Outbox full, dropping item")
}

func (o *Outbox) run() {
	defer close(o.done)
	for item := range o.items {
		o.write(item)
	}
}

func (o *Outbox) write(item outboxItem) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	if item.ledger != nil {
		if o.store != nil {
			if err := o.store.SaveLedger(ctx, item.playerID, *item.ledger); err != nil {
				metrics.SinkErrors.WithLabelValues("store").Inc()
				log.Error().Err(err).Str("player_id", item.playerID).Msg("Failed to save reward ledger")
			}
		}
		return
	}

	ev := *item.event
	if ev.Kind == engine.KindTerritoryClosed && ev.Territory != nil && o.store != nil {
		if err := o.store.SaveTerritory(ctx, ev.PlayerID, *ev.Territory); err != nil {
			metrics.SinkErrors.WithLabelValues("store").Inc()
			log.Error().
				Err(err).
				Str("player_id", ev.PlayerID).
				Str("territory_id", ev.Territory.ID.String()).
				Msg("Failed to save territory")
		}
	}

	if o.publisher != nil {
		if err := o.publisher.Publish(ctx, ev); err != nil {
			metrics.SinkErrors.WithLabelValues("publisher").Inc()
			log.Error().
				Err(err).
				Str("event_id", ev.ID.String()).
				Str("kind", string(ev.Kind)).
				Msg("Failed to publish event")
		}
	}
}
