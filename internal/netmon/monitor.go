// Package netmon tracks backend reachability. The platform gives the daemon
// no push-style reachability signal, so the monitor uses the periodic-probe
// fallback: a lightweight health request every probe interval.
package netmon

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kanux/kanuxd/internal/bus"
	"github.com/kanux/kanuxd/internal/remote"
	"go.uber.org/zap"
)

// Prober answers whether the backend is currently reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProbeFunc adapts a function to the Prober interface.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Probe(ctx context.Context) error { return f(ctx) }

// NewRemoteProber probes reachability via the remote store's health endpoint.
func NewRemoteProber(s remote.Store) Prober {
	return ProbeFunc(func(ctx context.Context) error {
		return s.Ping(ctx)
	})
}

type subscriber struct {
	onOnline  func()
	onOffline func()
}

// Monitor is the single source of truth for online/offline state.
type Monitor struct {
	prober   Prober
	interval time.Duration
	bus      *bus.Bus
	logger   *zap.Logger
	cancel   context.CancelFunc

	mu     sync.Mutex
	online bool
	subs   map[int]subscriber
	next   int
}

// NewMonitor creates a monitor. It reports offline until the first probe.
func NewMonitor(prober Prober, interval time.Duration, b *bus.Bus, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		bus:      b,
		logger:   logger,
		subs:     make(map[int]subscriber),
	}
}

// Start performs an immediate probe to establish the initial state, then
// probes on the configured interval until Stop.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.probe(ctx)
	go m.loop(ctx)
}

// Stop stops the probe loop.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// CurrentlyOnline returns the last observed reachability state.
func (m *Monitor) CurrentlyOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers transition callbacks and returns an unsubscribe
// function. Every subscriber receives every transition exactly once, in the
// order transitions occur; callbacks run synchronously on the probe
// goroutine and must not block.
func (m *Monitor) Subscribe(onOnline, onOffline func()) func() {
	m.mu.Lock()
	id := m.next
	m.next++
	m.subs[id] = subscriber{onOnline: onOnline, onOffline: onOffline}
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Monitor) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	err := m.prober.Probe(probeCtx)
	cancel()
	m.setOnline(err == nil)
}

// setOnline records the new state and, on a transition, notifies subscribers
// in registration order and publishes the corresponding bus event.
func (m *Monitor) setOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]subscriber, 0, len(ids))
	for _, id := range ids {
		subs = append(subs, m.subs[id])
	}
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("connectivity changed", zap.Bool("online", online))
	}
	for _, sub := range subs {
		if online && sub.onOnline != nil {
			sub.onOnline()
		}
		if !online && sub.onOffline != nil {
			sub.onOffline()
		}
	}
	if m.bus != nil {
		kind := bus.NetOffline
		if online {
			kind = bus.NetOnline
		}
		m.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now()})
	}
}
