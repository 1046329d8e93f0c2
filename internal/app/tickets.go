package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kanux/kanuxd/internal/bus"
	"github.com/kanux/kanuxd/internal/remote"
	"github.com/kanux/kanuxd/internal/store"
	"go.uber.org/zap"
)

// NewTicketInput is the caller-facing payload for opening a ticket.
type NewTicketInput struct {
	CompanyID   string
	Title       string
	Description string
	Priority    string
}

// TicketService is the ticket entry point for UI code, mirroring the message
// facade: read-through cache for lists, optimistic queue for writes.
type TicketService struct {
	db       *store.DB
	remote   remote.Store
	net      Connectivity
	bus      *bus.Bus
	logger   *zap.Logger
	pageSize int
}

// NewTicketService creates a ticket facade.
func NewTicketService(db *store.DB, rs remote.Store, net Connectivity, b *bus.Bus, logger *zap.Logger, pageSize int) *TicketService {
	if pageSize <= 0 {
		pageSize = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		db:       db,
		remote:   rs,
		net:      net,
		bus:      b,
		logger:   logger,
		pageSize: pageSize,
	}
}

// LoadTickets returns the recent tickets of a company, newest first, falling
// back to the local cache on any remote failure.
func (s *TicketService) LoadTickets(ctx context.Context, companyID string) ([]store.Ticket, error) {
	if companyID == "" {
		return nil, &ValidationError{Field: "company_id", Reason: "must not be empty"}
	}

	if s.net.CurrentlyOnline() {
		remTickets, err := s.remote.FetchTickets(ctx, companyID, s.pageSize)
		if err != nil {
			s.logger.Warn("remote fetch failed, serving cached tickets",
				zap.String("company_id", companyID), zap.Error(err))
		} else {
			for i := range remTickets {
				if err := s.db.UpsertTicket(mirrorTicket(&remTickets[i])); err != nil {
					s.logger.Error("failed to mirror ticket", zap.Error(err))
				}
			}
		}
	}

	return s.db.ListTickets(companyID, s.pageSize)
}

// CreateTicket opens a ticket, queueing it locally when the backend is
// unreachable.
func (s *TicketService) CreateTicket(ctx context.Context, in NewTicketInput) (*store.Ticket, error) {
	if in.CompanyID == "" {
		return nil, &ValidationError{Field: "company_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if in.Priority == "" {
		in.Priority = "normal"
	}

	key := uuid.NewString()

	if s.net.CurrentlyOnline() {
		srv, err := s.remote.InsertTicket(ctx, remote.NewTicket{
			CompanyID:      in.CompanyID,
			Title:          in.Title,
			Description:    in.Description,
			Priority:       in.Priority,
			IdempotencyKey: key,
		})
		if err == nil {
			tk := mirrorTicket(srv)
			if err := s.db.UpsertTicket(tk); err != nil {
				s.logger.Error("failed to mirror created ticket", zap.Error(err))
			}
			s.publish(bus.TicketSynced, map[string]string{
				"company_id": in.CompanyID, "server_id": tk.ID,
			})
			return tk, nil
		}
		if remote.IsRejected(err) {
			return nil, err
		}
		s.logger.Warn("direct create failed, queueing for sync",
			zap.String("company_id", in.CompanyID), zap.Error(err))
	}

	tk := &store.Ticket{
		ID:          store.TempIDPrefix + uuid.NewString(),
		CompanyID:   in.CompanyID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      "open",
		CreatedAt:   time.Now().UnixMilli(),
	}
	if err := s.db.CreateLocalTicket(tk, key); err != nil {
		return nil, err
	}
	s.publish(bus.TicketQueued, map[string]string{
		"company_id": in.CompanyID, "local_id": tk.ID,
	})
	return tk, nil
}

func (s *TicketService) publish(kind bus.Kind, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

func mirrorTicket(tk *remote.Ticket) *store.Ticket {
	return &store.Ticket{
		ID:          tk.ID,
		CompanyID:   tk.CompanyID,
		Title:       tk.Title,
		Description: tk.Description,
		Priority:    tk.Priority,
		Status:      tk.Status,
		CreatedAt:   tk.CreatedAt,
		Pending:     false,
		Synced:      true,
	}
}
