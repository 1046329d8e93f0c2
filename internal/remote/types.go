package remote

import "context"

// Message is a server-persisted chat message.
type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	AuthorID  string `json:"author_id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"` // unix millis
}

// Ticket is a server-persisted helpdesk ticket.
type Ticket struct {
	ID          string `json:"id"`
	CompanyID   string `json:"company_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
}

// Company is a tenant record, cached client-side with a TTL.
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Plan string `json:"plan"`
}

// NewMessage is the insert payload for a message. IdempotencyKey is a
// client-generated uuid the backend may use to de-duplicate redeliveries.
type NewMessage struct {
	ChatID         string `json:"chat_id"`
	Content        string `json:"content"`
	IdempotencyKey string `json:"-"`
}

// NewTicket is the insert payload for a ticket.
type NewTicket struct {
	CompanyID      string `json:"company_id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Priority       string `json:"priority"`
	IdempotencyKey string `json:"-"`
}

// Store is the hosted backend the daemon reads from and replays queued
// writes against. Implementations must return NetworkError for transient
// unreachability and RemoteRejectedError for server-side refusals.
type Store interface {
	InsertMessage(ctx context.Context, in NewMessage) (*Message, error)
	InsertTicket(ctx context.Context, in NewTicket) (*Ticket, error)
	FetchMessages(ctx context.Context, chatID string, limit int) ([]Message, error)
	FetchTickets(ctx context.Context, companyID string, limit int) ([]Ticket, error)
	FetchCompany(ctx context.Context, id string) (*Company, error)
	Ping(ctx context.Context) error
}
