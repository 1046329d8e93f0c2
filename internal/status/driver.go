package status

import (
	"context"

	"github.com/kanux/kanuxd/internal/bus"
	"go.uber.org/zap"
)

// Driver folds bus events into machine transitions so no component needs a
// direct handle on the machine.
type Driver struct {
	machine *Machine
	bus     *bus.Bus
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// NewDriver creates a driver for the given machine.
func NewDriver(m *Machine, b *bus.Bus, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{machine: m, bus: b, logger: logger}
}

// Start consumes bus events until the context is cancelled.
func (d *Driver) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	ch, unsub := d.bus.Subscribe("", 64)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				d.apply(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the event loop.
func (d *Driver) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Driver) apply(evt bus.Event) {
	var to State
	switch evt.Kind {
	case bus.NetOnline:
		// Do not clobber a sync pass already in flight.
		if d.machine.Current() == Syncing {
			return
		}
		to = Online
	case bus.NetOffline:
		to = Offline
	case bus.SyncPassStarted:
		to = Syncing
	case bus.SyncPassCompleted:
		to = Online
	case bus.StoreDegraded:
		to = Degraded
	default:
		return
	}
	if err := d.machine.Transition(to); err != nil {
		d.logger.Debug("ignored transition", zap.String("to", string(to)), zap.Error(err))
	}
}
