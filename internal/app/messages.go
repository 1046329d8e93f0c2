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

// Connectivity is the slice of the monitor the facade needs.
type Connectivity interface {
	CurrentlyOnline() bool
}

// MessageService is the message entry point for UI code. Reads serve from
// the local store when the backend is unreachable; writes never block on the
// network — they queue locally and return an optimistic echo.
type MessageService struct {
	db       *store.DB
	remote   remote.Store
	net      Connectivity
	bus      *bus.Bus
	logger   *zap.Logger
	pageSize int
}

// NewMessageService creates a message facade.
func NewMessageService(db *store.DB, rs remote.Store, net Connectivity, b *bus.Bus, logger *zap.Logger, pageSize int) *MessageService {
	if pageSize <= 0 {
		pageSize = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{
		db:       db,
		remote:   rs,
		net:      net,
		bus:      b,
		logger:   logger,
		pageSize: pageSize,
	}
}

// LoadMessages returns the recent messages of a chat, oldest first. Online it
// fetches from the backend and mirrors into the local store; any remote
// failure falls back to the cached copy instead of propagating.
func (s *MessageService) LoadMessages(ctx context.Context, chatID string) ([]store.Message, error) {
	if chatID == "" {
		return nil, &ValidationError{Field: "chat_id", Reason: "must not be empty"}
	}

	if s.net.CurrentlyOnline() {
		remMsgs, err := s.remote.FetchMessages(ctx, chatID, s.pageSize)
		if err != nil {
			s.logger.Warn("remote fetch failed, serving cached messages",
				zap.String("chat_id", chatID), zap.Error(err))
		} else {
			for i := range remMsgs {
				if err := s.db.UpsertMessage(mirrorMessage(&remMsgs[i])); err != nil {
					s.logger.Error("failed to mirror message", zap.Error(err))
				}
			}
		}
	}

	return s.db.ListMessages(chatID, s.pageSize)
}

// SendMessage persists a message. Online it inserts remotely and mirrors the
// server copy; offline (or when the insert fails mid-call on a network flap)
// it stores a pending copy with a temporary id, queues the write for the sync
// engine, and returns immediately.
func (s *MessageService) SendMessage(ctx context.Context, chatID, authorID, content string) (*store.Message, error) {
	if chatID == "" {
		return nil, &ValidationError{Field: "chat_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(content) == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}

	key := uuid.NewString()

	if s.net.CurrentlyOnline() {
		srv, err := s.remote.InsertMessage(ctx, remote.NewMessage{
			ChatID:         chatID,
			Content:        content,
			IdempotencyKey: key,
		})
		if err == nil {
			m := mirrorMessage(srv)
			if err := s.db.UpsertMessage(m); err != nil {
				s.logger.Error("failed to mirror sent message", zap.Error(err))
			}
			s.publish(bus.MessageSynced, map[string]string{
				"chat_id": chatID, "server_id": m.ID,
			})
			return m, nil
		}
		if remote.IsRejected(err) {
			// Permanent refusal: queueing would only delay the same answer.
			return nil, err
		}
		s.logger.Warn("direct send failed, queueing for sync",
			zap.String("chat_id", chatID), zap.Error(err))
	}

	m := &store.Message{
		ID:        store.TempIDPrefix + uuid.NewString(),
		ChatID:    chatID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.db.CreateLocalMessage(m, key); err != nil {
		return nil, err
	}
	s.publish(bus.MessageQueued, map[string]string{
		"chat_id": chatID, "local_id": m.ID,
	})
	return m, nil
}

func (s *MessageService) publish(kind bus.Kind, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

func mirrorMessage(m *remote.Message) *store.Message {
	return &store.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		AuthorID:  m.AuthorID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Pending:   false,
		Synced:    true,
	}
}
