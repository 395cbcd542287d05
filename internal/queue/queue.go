// Package queue hosts player sessions on a fixed worker pool. Every player is
// pinned to one worker, so a session is only ever touched by that worker's
// goroutine and needs no locking of its own.
package queue

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stuartshay/geo-session-engine/internal/engine"
)

// Dispatcher errors
var (
	ErrQueueFull = errors.New("queue is full")
	ErrShutdown  = errors.New("dispatcher is shut down")
)

// CommandStatus represents the state of a session command
type CommandStatus string

// Command status constants define the lifecycle states
const (
	StatusQueued     CommandStatus = "queued"
	StatusProcessing CommandStatus = "processing"
	StatusCompleted  CommandStatus = "completed"
	StatusFailed     CommandStatus = "failed"
)

// CommandFunc runs against the session of one player on its worker
type CommandFunc func(s *engine.Session) error

// SessionFactory builds the session for a player seen for the first time
type SessionFactory func(ctx context.Context, playerID string) (*engine.Session, error)

// Command is one unit of work in a worker mailbox
type Command struct {
	ID       string
	PlayerID string
	Status   CommandStatus
	QueuedAt time.Time

	ctx        context.Context
	run        CommandFunc
	each       func(s *engine.Session)
	forget     bool
	idleBefore time.Time
	evicted    bool
	done       chan error
}

// Dispatcher routes commands to the worker that owns the player's session
type Dispatcher struct {
	mu        sync.RWMutex
	stats     map[CommandStatus]int
	sessions  int
	mailboxes []chan *Command
	shards    []map[string]*engine.Session
	lastUsed  map[string]time.Time
	workers   int
	factory   SessionFactory
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given worker count and per-worker mailbox size
func NewDispatcher(workers, mailbox int, factory SessionFactory) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if mailbox < 1 {
		mailbox = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		stats:     make(map[CommandStatus]int),
		mailboxes: make([]chan *Command, workers),
		shards:    make([]map[string]*engine.Session, workers),
		lastUsed:  make(map[string]time.Time),
		workers:   workers,
		factory:   factory,
		ctx:       ctx,
		cancel:    cancel,
	}

	// Start worker pool
	for i := 0; i < workers; i++ {
		d.mailboxes[i] = make(chan *Command, mailbox)
		d.shards[i] = make(map[string]*engine.Session)
		d.wg.Add(1)
		go d.worker(i)
	}

	log.Info().
		Int("workers", workers).
		Int("mailbox", mailbox).
		Msg("Session dispatcher started")

	return d
}

// Do runs fn on the player's session and waits for it to finish. The session
// is created on first use.
//
// If ctx ends while the command is still queued, the worker skips it. Once fn
// has started it runs to completion even if ctx ends, and Do returns ctx.Err()
// without its result.
func (d *Dispatcher) Do(ctx context.Context, playerID string, fn CommandFunc) error {
	if playerID == "" {
		return fmt.Errorf("player id is required")
	}
	return d.submit(ctx, &Command{PlayerID: playerID, run: fn})
}

// Forget drops the player's session from memory. The next command recreates it.
func (d *Dispatcher) Forget(ctx context.Context, playerID string) error {
	return d.submit(ctx, &Command{PlayerID: playerID, forget: true})
}

// IdleSessions returns the players whose last command ran before cutoff
func (d *Dispatcher) IdleSessions(cutoff time.Time) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var idle []string
	for id, at := range d.lastUsed {
		if at.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	return idle
}

// EvictIdle forgets every session whose last command ran before cutoff and
// returns the evicted players. A session that ran a command after the scan is
// kept.
func (d *Dispatcher) EvictIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	var evicted []string
	for _, id := range d.IdleSessions(cutoff) {
		cmd := &Command{PlayerID: id, forget: true, idleBefore: cutoff}
		if err := d.submit(ctx, cmd); err != nil {
			return evicted, err
		}
		if cmd.evicted {
			evicted = append(evicted, id)
		}
	}
	return evicted, nil
}

// Broadcast runs fn on every hosted session. Workers whose mailbox is full are
// skipped; the count of workers reached is returned.
func (d *Dispatcher) Broadcast(fn func(s *engine.Session)) int {
	reached := 0
	for i := range d.mailboxes {
		cmd := d.newCommand(&Command{each: fn})
		select {
		case d.mailboxes[i] <- cmd:
			reached++
		default:
			d.record(StatusQueued, StatusFailed)
		}
	}
	return reached
}

// GetStats returns command counters and the hosted session count
func (d *Dispatcher) GetStats() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := map[string]int{
		"total":      0,
		"queued":     d.stats[StatusQueued],
		"processing": d.stats[StatusProcessing],
		"completed":  d.stats[StatusCompleted],
		"failed":     d.stats[StatusFailed],
		"sessions":   d.sessions,
	}
	for _, n := range d.stats {
		stats["total"] += n
	}
	return stats
}

// Sessions returns the number of sessions currently hosted
func (d *Dispatcher) Sessions() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sessions
}

// Shutdown stops the workers, waiting up to timeout for them to exit
func (d *Dispatcher) Shutdown(timeout time.Duration) error {
	log.Info().Msg("Shutting down session dispatcher...")
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Session dispatcher shut down successfully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

func (d *Dispatcher) newCommand(cmd *Command) *Command {
	cmd.ID = uuid.New().String()
	cmd.Status = StatusQueued
	cmd.QueuedAt = time.Now()
	cmd.done = make(chan error, 1)

	d.mu.Lock()
	d.stats[StatusQueued]++
	d.mu.Unlock()
	return cmd
}

func (d *Dispatcher) submit(ctx context.Context, cmd *Command) error {
	if d.ctx.Err() != nil {
		return ErrShutdown
	}

	cmd = d.newCommand(cmd)
	cmd.ctx = ctx
	select {
	case d.mailboxes[d.shard(cmd.PlayerID)] <- cmd:
	default:
		d.record(StatusQueued, StatusFailed)
		log.Warn().
			Str("player_id", cmd.PlayerID).
			Msg("Session mailbox full, command dropped")
		return ErrQueueFull
	}

	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return ErrShutdown
	}
}

// shard pins a player to a worker
func (d *Dispatcher) shard(playerID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(playerID))
	return int(h.Sum32() % uint32(d.workers))
}

func (d *Dispatcher) record(from, to CommandStatus) {
	d.mu.Lock()
	d.stats[from]--
	d.stats[to]++
	d.mu.Unlock()
}

// worker processes commands for the sessions it owns
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case cmd := <-d.mailboxes[id]:
			d.process(id, cmd)
		}
	}
}

// process executes a single command
func (d *Dispatcher) process(id int, cmd *Command) {
	cmd.Status = StatusProcessing
	d.record(StatusQueued, StatusProcessing)

	var err error
	if cmd.ctx != nil && cmd.ctx.Err() != nil {
		// the caller already gave up
		err = cmd.ctx.Err()
		log.Debug().
			Str("command_id", cmd.ID).
			Str("player_id", cmd.PlayerID).
			Msg("Skipping abandoned session command")
	} else {
		err = d.execute(id, cmd)
	}

	if err != nil {
		cmd.Status = StatusFailed
		d.record(StatusProcessing, StatusFailed)
	} else {
		cmd.Status = StatusCompleted
		d.record(StatusProcessing, StatusCompleted)
	}
	cmd.done <- err
}

func (d *Dispatcher) execute(id int, cmd *Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("command_id", cmd.ID).
				Str("player_id", cmd.PlayerID).
				Interface("panic", r).
				Msg("Session command panicked")
			err = fmt.Errorf("session command panicked: %v", r)
		}
	}()

	sessions := d.shards[id]

	switch {
	case cmd.each != nil:
		for _, s := range sessions {
			cmd.each(s)
		}
		return nil
	case cmd.forget:
		d.mu.Lock()
		defer d.mu.Unlock()
		if !cmd.idleBefore.IsZero() && !d.lastUsed[cmd.PlayerID].Before(cmd.idleBefore) {
			return nil
		}
		if _, ok := sessions[cmd.PlayerID]; ok {
			delete(sessions, cmd.PlayerID)
			d.sessions--
			cmd.evicted = true
		}
		delete(d.lastUsed, cmd.PlayerID)
		return nil
	}

	s, ok := sessions[cmd.PlayerID]
	if !ok {
		s, err = d.factory(d.ctx, cmd.PlayerID)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		sessions[cmd.PlayerID] = s
		d.mu.Lock()
		d.sessions++
		d.mu.Unlock()

		log.Debug().
			Int("worker_id", id).
			Str("player_id", cmd.PlayerID).
			Msg("Session created")
	}

	d.mu.Lock()
	d.lastUsed[cmd.PlayerID] = time.Now()
	d.mu.Unlock()

	return cmd.run(s)
}
