package bus

import "time"

// Kind identifies a domain event. Kinds are dot-namespaced so subscribers
// can listen to a whole family ("sync.") or to a single kind.
type Kind string

const (
	NetOnline  Kind = "net.online"
	NetOffline Kind = "net.offline"

	MessageQueued Kind = "message.queued"
	MessageSynced Kind = "message.synced"
	TicketQueued  Kind = "ticket.queued"
	TicketSynced  Kind = "ticket.synced"

	SyncPassStarted   Kind = "sync.pass_started"
	SyncPassCompleted Kind = "sync.pass_completed"
	SyncOpDropped     Kind = "sync.op_dropped"

	StatusChanged Kind = "status.changed"
	StoreDegraded Kind = "store.degraded"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	Payload   any
}
