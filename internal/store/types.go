package store

import "encoding/json"

// TempIDPrefix marks client-generated message/ticket ids that have not yet
// been replaced by a server-issued id.
const TempIDPrefix = "temp_"

// Message is a locally cached chat message. Pending rows were created while
// offline and carry a temp_ id until the sync engine replaces it with the
// server-issued one.
type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	AuthorID  string `json:"author_id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"` // unix millis
	Pending   bool   `json:"pending"`
	Synced    bool   `json:"synced"`
}

// Ticket is a locally cached helpdesk ticket.
type Ticket struct {
	ID          string `json:"id"`
	CompanyID   string `json:"company_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"` // unix millis
	Pending     bool   `json:"pending"`
	Synced      bool   `json:"synced"`
}

// OpKind tags the payload variant carried by a pending operation.
type OpKind string

const (
	OpMessage OpKind = "message"
	OpTicket  OpKind = "ticket"
)

// PendingOp is one entry in the write queue. Seq is assigned by the store on
// enqueue and is strictly monotonic, so ordering by Seq preserves the local
// call order within every (kind, target) stream.
type PendingOp struct {
	Seq            int64
	Kind           OpKind
	TargetID       string // chat id for messages, company id for tickets
	LocalID        string
	IdempotencyKey string
	Payload        json.RawMessage
	Attempts       int
	EnqueuedAt     int64
}

// Stream returns the ordering scope of the operation. Operations in the same
// stream must be delivered in Seq order; different streams are independent.
func (op *PendingOp) Stream() string {
	return string(op.Kind) + "/" + op.TargetID
}

// MessagePayload is the Payload variant for OpMessage.
type MessagePayload struct {
	ChatID    string `json:"chat_id"`
	AuthorID  string `json:"author_id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// TicketPayload is the Payload variant for OpTicket.
type TicketPayload struct {
	CompanyID   string `json:"company_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	CreatedAt   int64  `json:"created_at"`
}
