package status

import (
	"context"
	"testing"
	"time"

	"github.com/kanux/kanuxd/internal/bus"
)

func publish(b *bus.Bus, kind bus.Kind, payload any) {
	b.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

func waitState(t *testing.T, m *Machine, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if m.Current() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("state = %s, want %s", m.Current(), want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDriverFollowsConnectivity(t *testing.T) {
	b := bus.New()
	m := NewMachine(b)
	d := NewDriver(m, b, nil)
	d.Start(context.Background())
	defer d.Stop()

	publish(b, bus.NetOffline, nil)
	waitState(t, m, Offline)

	publish(b, bus.NetOnline, nil)
	waitState(t, m, Online)
}

func TestDriverTracksSyncPass(t *testing.T) {
	b := bus.New()
	m := NewMachine(b)
	d := NewDriver(m, b, nil)
	d.Start(context.Background())
	defer d.Stop()

	publish(b, bus.NetOnline, nil)
	waitState(t, m, Online)

	publish(b, bus.SyncPassStarted, 3)
	waitState(t, m, Syncing)

	publish(b, bus.SyncPassCompleted, nil)
	waitState(t, m, Online)
}

func TestDriverMarksDegradedStore(t *testing.T) {
	b := bus.New()
	m := NewMachine(b)
	d := NewDriver(m, b, nil)
	d.Start(context.Background())
	defer d.Stop()

	publish(b, bus.StoreDegraded, nil)
	waitState(t, m, Degraded)

	// Connectivity changes must not pull the daemon out of degraded.
	publish(b, bus.NetOnline, nil)
	time.Sleep(20 * time.Millisecond)
	if m.Current() != Degraded {
		t.Errorf("state = %s, want DEGRADED to stick", m.Current())
	}
}
