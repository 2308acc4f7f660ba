// Package reconciler mirrors the fleet status service into an alive set
// and a dead set, re-polling the service until stopped.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lagren/fleetwatch/status"
)

// DefaultInterval is the delay between the end of one poll and the start
// of the next.
const DefaultInterval = time.Second

// ErrStopped is returned for removals requested after Stop.
var ErrStopped = errors.New("reconciler stopped")

// Client is the part of the status service the reconciler needs.
type Client interface {
	Status(ctx context.Context) (status.Report, error)
	Remove(ctx context.Context, host string) error
}

// Snapshot is a read-only copy of the reconciled sets. The maps are
// private copies; the records are shared and must not be modified.
type Snapshot struct {
	Alive    map[string]*status.Record
	Dead     map[string]*status.Record
	LastPoll time.Time
}

// AliveHosts returns the alive host names in order.
func (s Snapshot) AliveHosts() []string {
	return sortedHosts(s.Alive)
}

// DeadHosts returns the dead host names in order.
func (s Snapshot) DeadHosts() []string {
	return sortedHosts(s.Dead)
}

// Event is delivered to subscribers after every change to the sets.
type Event struct {
	Snapshot    Snapshot
	Transitions []Transition
}

// Reconciler owns the alive and dead sets. All mutations happen under mu
// and run to completion before the next one starts.
type Reconciler struct {
	client   Client
	interval time.Duration

	mu       sync.RWMutex
	alive    map[string]*status.Record
	dead     map[string]*status.Record
	lastPoll time.Time

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(client Client, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Reconciler{
		client:   client,
		interval: interval,
		alive:    make(map[string]*status.Record),
		dead:     make(map[string]*status.Record),
		subs:     make(map[int]chan Event),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start polls immediately and then keeps polling, waiting interval after
// each poll completes. Failed polls are logged and retried forever. Blocks
// until ctx is cancelled or Stop is called.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.ctx.Err() != nil {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(r.ctx, cancel)
	defer stop()

	logrus.Infof("Polling status every %s", r.interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			if err := r.PollOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				logrus.Warnf("Could not poll status: %s", err)
			}

			timer.Reset(r.interval)
		case <-ctx.Done():
			logrus.Infof("Status polling stopped")
			return
		}
	}
}

// Stop cancels polling and waits for the loop and any pending removal
// confirmations to finish. A stopped reconciler cannot be restarted.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
}

// PollOnce fetches the status once and merges it into the sets. On error
// the sets are left untouched.
func (r *Reconciler) PollOnce(ctx context.Context) error {
	report, err := r.client.Status(ctx)
	if err != nil {
		return fmt.Errorf("could not fetch status: %w", err)
	}

	alive, dead := partition(report)

	r.mu.Lock()
	defer r.mu.Unlock()

	before := classify(r.alive, r.dead)

	merge(r.alive, alive)
	merge(r.dead, dead)
	r.lastPoll = time.Now()

	transitions := diff(before, classify(r.alive, r.dead))
	for _, t := range transitions {
		logrus.Debugf("Host %s: %s -> %s", t.Host, t.From, t.To)
	}

	r.publish(Event{Snapshot: r.snapshot(), Transitions: transitions})

	return nil
}

// RemoveHost drops host from both sets right away and asks the service to
// deregister it in the background. The returned channel receives the
// outcome of that request. A failed request is only logged; if the
// service still reports the host, the next poll brings it back. After
// Stop nothing is removed and the channel receives ErrStopped.
func (r *Reconciler) RemoveHost(host string) <-chan error {
	done := make(chan error, 1)

	r.mu.Lock()
	if r.ctx.Err() != nil {
		r.mu.Unlock()
		done <- ErrStopped
		return done
	}

	from := StateAbsent
	if _, ok := r.alive[host]; ok {
		from = StateAlive
	} else if _, ok := r.dead[host]; ok {
		from = StateDead
	}

	delete(r.alive, host)
	delete(r.dead, host)

	if from != StateAbsent {
		r.publish(Event{
			Snapshot:    r.snapshot(),
			Transitions: []Transition{{Host: host, From: from, To: StateAbsent}},
		})
	}

	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		err := r.client.Remove(r.ctx, host)
		if err != nil {
			logrus.Warnf("Could not remove %s: %s", host, err)
		} else {
			logrus.Infof("Removed %s", host)
		}

		done <- err
	}()

	return done
}

// Snapshot returns a copy of the current sets.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshot()
}

// State returns the current classification of host.
func (r *Reconciler) State(host string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.alive[host]; ok {
		return StateAlive
	}
	if _, ok := r.dead[host]; ok {
		return StateDead
	}

	return StateAbsent
}

// Subscribe returns a channel receiving an Event after every change, and a
// function that ends the subscription and closes the channel. A slow
// reader gets the latest snapshot with the transitions of every event it
// missed.
func (r *Reconciler) Subscribe() (<-chan Event, func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	id := r.nextSub
	r.nextSub++

	ch := make(chan Event, 1)
	r.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subMu.Lock()
			defer r.subMu.Unlock()

			delete(r.subs, id)
			close(ch)
		})
	}
}

// snapshot must be called with mu held.
func (r *Reconciler) snapshot() Snapshot {
	return Snapshot{
		Alive:    maps.Clone(r.alive),
		Dead:     maps.Clone(r.dead),
		LastPoll: r.lastPoll,
	}
}

// publish must be called with mu held so events go out in mutation order.
func (r *Reconciler) publish(ev Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	for _, ch := range r.subs {
		select {
		case ch <- ev:
			continue
		default:
		}

		// Replace the event the reader has not picked up yet.
		merged := ev
		select {
		case stale := <-ch:
			merged.Transitions = append(slices.Clip(stale.Transitions), ev.Transitions...)
		default:
		}

		select {
		case ch <- merged:
		default:
		}
	}
}
