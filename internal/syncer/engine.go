// Package syncer drains the pending-write queue against the remote store.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kanux/kanuxd/internal/bus"
	"github.com/kanux/kanuxd/internal/remote"
	"github.com/kanux/kanuxd/internal/store"
	"go.uber.org/zap"
)

// Connectivity is the slice of the monitor the engine needs.
type Connectivity interface {
	CurrentlyOnline() bool
}

// Policy bounds retry behavior. Network failures retry on every trigger
// without a bound; MaxAttempts applies only to operations the backend
// rejected outright.
type Policy struct {
	SweepInterval time.Duration
	MaxAttempts   int
}

// PassResult summarizes one drain pass over the queue.
type PassResult struct {
	Drained   int
	Dropped   int
	Remaining int
}

// errBadPayload marks a queue entry that cannot be decoded; it is removed
// rather than retried so it cannot poison its stream forever.
var errBadPayload = errors.New("undecodable pending payload")

// Engine replays queued offline writes when the backend is reachable.
// At most one pass runs at a time; triggers are the online transition, a
// periodic safety-net sweep, and manual SyncNow calls.
type Engine struct {
	db     *store.DB
	remote remote.Store
	net    Connectivity
	bus    *bus.Bus
	logger *zap.Logger
	policy Policy

	syncing atomic.Bool
	cancel  context.CancelFunc
}

// NewEngine creates a sync engine.
func NewEngine(db *store.DB, rs remote.Store, net Connectivity, b *bus.Bus, logger *zap.Logger, policy Policy) *Engine {
	if policy.SweepInterval <= 0 {
		policy.SweepInterval = 5 * time.Second
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:     db,
		remote: rs,
		net:    net,
		bus:    b,
		logger: logger,
		policy: policy,
	}
}

// Start listens for online transitions and runs the periodic sweep that
// catches operations enqueued while a pass was already in flight.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("net.online", 16)

	go func() {
		defer unsub()
		ticker := time.NewTicker(e.policy.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ch:
				_, _ = e.SyncNow(ctx)
			case <-ticker.C:
				_, _ = e.SyncNow(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the trigger loop. A pass already in flight runs to completion;
// that is safe because every item is individually atomic.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// SyncNow runs one drain pass. It returns (nil, nil) when skipped because a
// pass is already running or the daemon is offline.
func (e *Engine) SyncNow(ctx context.Context) (*PassResult, error) {
	if !e.net.CurrentlyOnline() {
		return nil, nil
	}
	if !e.syncing.CompareAndSwap(false, true) {
		return nil, nil
	}
	defer e.syncing.Store(false)

	ops, err := e.db.PendingOps()
	if err != nil {
		e.logger.Error("failed to read pending queue", zap.Error(err))
		return nil, err
	}
	if len(ops) == 0 {
		return &PassResult{}, nil
	}
	e.publish(bus.SyncPassStarted, len(ops))

	var res PassResult
	blocked := make(map[string]bool)

	for i := range ops {
		op := &ops[i]

		// Connectivity may have flapped during a previous remote call;
		// stop issuing new ones and leave the rest queued.
		if !e.net.CurrentlyOnline() {
			res.Remaining += len(ops) - i
			break
		}
		if blocked[op.Stream()] {
			res.Remaining++
			continue
		}

		err := e.deliver(ctx, op)
		switch {
		case err == nil:
			res.Drained++

		case errors.Is(err, errBadPayload):
			e.logger.Error("dropping undecodable operation",
				zap.Int64("seq", op.Seq), zap.String("kind", string(op.Kind)))
			if aerr := e.db.AbandonOp(op); aerr != nil {
				e.logger.Error("failed to drop operation", zap.Error(aerr))
			}
			res.Dropped++

		case remote.IsRejected(err):
			attempts, aerr := e.db.IncrementAttempts(op.Seq)
			if aerr != nil {
				e.logger.Error("failed to record attempt", zap.Error(aerr))
				attempts = op.Attempts + 1
			}
			if attempts >= e.policy.MaxAttempts {
				e.logger.Warn("dropping rejected operation",
					zap.Int64("seq", op.Seq), zap.Int("attempts", attempts), zap.Error(err))
				if aerr := e.db.AbandonOp(op); aerr != nil {
					e.logger.Error("failed to drop operation", zap.Error(aerr))
				}
				res.Dropped++
				e.publish(bus.SyncOpDropped, map[string]any{
					"seq": op.Seq, "kind": string(op.Kind), "local_id": op.LocalID,
				})
			} else {
				e.logger.Warn("operation rejected, will retry",
					zap.Int64("seq", op.Seq), zap.Int("attempts", attempts), zap.Error(err))
				blocked[op.Stream()] = true
				res.Remaining++
			}

		default:
			// Transient failure: leave the op queued and block only its
			// stream so unrelated chats keep draining.
			e.logger.Warn("delivery failed, stream paused for this pass",
				zap.Int64("seq", op.Seq), zap.String("stream", op.Stream()), zap.Error(err))
			blocked[op.Stream()] = true
			res.Remaining++
		}
	}

	if err := e.db.SetLastSync(time.Now()); err != nil {
		e.logger.Warn("failed to record last sync", zap.Error(err))
	}
	e.logger.Info("sync pass completed",
		zap.Int("drained", res.Drained),
		zap.Int("dropped", res.Dropped),
		zap.Int("remaining", res.Remaining))
	e.publish(bus.SyncPassCompleted, res)

	return &res, nil
}

func (e *Engine) deliver(ctx context.Context, op *store.PendingOp) error {
	switch op.Kind {
	case store.OpMessage:
		var p store.MessagePayload
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return errBadPayload
		}
		msg, err := e.remote.InsertMessage(ctx, remote.NewMessage{
			ChatID:         p.ChatID,
			Content:        p.Content,
			IdempotencyKey: op.IdempotencyKey,
		})
		if err != nil {
			return err
		}
		if err := e.db.MarkMessageSynced(op.LocalID, msg.ID); err != nil {
			return fmt.Errorf("mark message synced: %w", err)
		}
		e.publish(bus.MessageSynced, map[string]string{
			"chat_id": p.ChatID, "local_id": op.LocalID, "server_id": msg.ID,
		})
		return nil

	case store.OpTicket:
		var p store.TicketPayload
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return errBadPayload
		}
		tk, err := e.remote.InsertTicket(ctx, remote.NewTicket{
			CompanyID:      p.CompanyID,
			Title:          p.Title,
			Description:    p.Description,
			Priority:       p.Priority,
			IdempotencyKey: op.IdempotencyKey,
		})
		if err != nil {
			return err
		}
		if err := e.db.MarkTicketSynced(op.LocalID, tk.ID); err != nil {
			return fmt.Errorf("mark ticket synced: %w", err)
		}
		e.publish(bus.TicketSynced, map[string]string{
			"company_id": p.CompanyID, "local_id": op.LocalID, "server_id": tk.ID,
		})
		return nil

	default:
		return errBadPayload
	}
}

func (e *Engine) publish(kind bus.Kind, payload any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
