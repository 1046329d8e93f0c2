package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kanux/kanuxd/internal/remote"
	"github.com/kanux/kanuxd/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fixedNet is a Connectivity with a fixed answer.
type fixedNet bool

func (n fixedNet) CurrentlyOnline() bool { return bool(n) }

// stubRemote returns canned data or canned errors.
type stubRemote struct {
	mu        sync.Mutex
	fetchMsgs []remote.Message
	fetchErr  error
	insertErr error
	inserts   int
}

func (r *stubRemote) InsertMessage(_ context.Context, in remote.NewMessage) (*remote.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	r.inserts++
	return &remote.Message{
		ID: fmt.Sprintf("srv-%d", r.inserts), ChatID: in.ChatID,
		AuthorID: "u1", Content: in.Content, CreatedAt: int64(r.inserts),
	}, nil
}

func (r *stubRemote) InsertTicket(_ context.Context, in remote.NewTicket) (*remote.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	r.inserts++
	return &remote.Ticket{
		ID: fmt.Sprintf("srv-t%d", r.inserts), CompanyID: in.CompanyID,
		Title: in.Title, Priority: in.Priority, Status: "open", CreatedAt: int64(r.inserts),
	}, nil
}

func (r *stubRemote) FetchMessages(context.Context, string, int) ([]remote.Message, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	return r.fetchMsgs, nil
}

func (r *stubRemote) FetchTickets(context.Context, string, int) ([]remote.Ticket, error) {
	return nil, r.fetchErr
}

func (r *stubRemote) FetchCompany(context.Context, string) (*remote.Company, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	return &remote.Company{ID: "acme", Name: "Acme Corp", Plan: "pro"}, nil
}

func (r *stubRemote) Ping(context.Context) error { return nil }

func TestSendMessageOfflineReturnsOptimisticEcho(t *testing.T) {
	db := testDB(t)
	svc := NewMessageService(db, &stubRemote{}, fixedNet(false), nil, nil, 50)

	start := time.Now()
	msg, err := svc.SendMessage(context.Background(), "general", "u1", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > time.Second {
		t.Error("SendMessage blocked; offline sends must return immediately")
	}

	if !msg.Pending || msg.Synced {
		t.Errorf("got pending=%v synced=%v, want pending=true synced=false", msg.Pending, msg.Synced)
	}
	if !strings.HasPrefix(msg.ID, store.TempIDPrefix) {
		t.Errorf("id = %q, want %s prefix", msg.ID, store.TempIDPrefix)
	}

	// Locally unique id: a second send gets a different one.
	msg2, err := svc.SendMessage(context.Background(), "general", "u1", "hi again")
	if err != nil {
		t.Fatal(err)
	}
	if msg2.ID == msg.ID {
		t.Errorf("two offline sends produced the same id %q", msg.ID)
	}

	n, _ := db.CountPending()
	if n != 2 {
		t.Errorf("CountPending = %d, want 2", n)
	}
}

func TestSendMessageValidation(t *testing.T) {
	db := testDB(t)
	svc := NewMessageService(db, &stubRemote{}, fixedNet(false), nil, nil, 50)

	_, err := svc.SendMessage(context.Background(), "general", "u1", "   ")
	if !IsValidation(err) {
		t.Errorf("err = %v, want ValidationError for empty content", err)
	}
	_, err = svc.SendMessage(context.Background(), "", "u1", "hi")
	if !IsValidation(err) {
		t.Errorf("err = %v, want ValidationError for empty chat id", err)
	}

	// Nothing reached storage.
	n, _ := db.CountPending()
	if n != 0 {
		t.Errorf("CountPending = %d, want 0 after rejected input", n)
	}
}

func TestSendMessageOnlineMirrorsServerCopy(t *testing.T) {
	db := testDB(t)
	rem := &stubRemote{}
	svc := NewMessageService(db, rem, fixedNet(true), nil, nil, 50)

	msg, err := svc.SendMessage(context.Background(), "general", "u1", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "srv-1" || msg.Pending || !msg.Synced {
		t.Errorf("got %+v, want synced server copy", msg)
	}

	n, _ := db.CountPending()
	if n != 0 {
		t.Errorf("CountPending = %d, want 0 for a direct online send", n)
	}
	msgs, _ := db.ListMessages("general", 10)
	if len(msgs) != 1 || msgs[0].ID != "srv-1" {
		t.Errorf("local mirror = %+v, want the server copy", msgs)
	}
}

func TestSendMessageNetworkFlapFallsBackToQueue(t *testing.T) {
	db := testDB(t)
	rem := &stubRemote{insertErr: &remote.NetworkError{Op: "insert", Err: fmt.Errorf("reset")}}
	svc := NewMessageService(db, rem, fixedNet(true), nil, nil, 50)

	msg, err := svc.SendMessage(context.Background(), "general", "u1", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if !msg.Pending {
		t.Errorf("got pending=%v, want true after mid-call network failure", msg.Pending)
	}
	n, _ := db.CountPending()
	if n != 1 {
		t.Errorf("CountPending = %d, want 1", n)
	}
}

func TestSendMessageRejectionPropagates(t *testing.T) {
	db := testDB(t)
	rem := &stubRemote{insertErr: &remote.RemoteRejectedError{Status: 403, Body: "denied"}}
	svc := NewMessageService(db, rem, fixedNet(true), nil, nil, 50)

	_, err := svc.SendMessage(context.Background(), "general", "u1", "hi")
	if !remote.IsRejected(err) {
		t.Errorf("err = %v, want RemoteRejectedError to propagate", err)
	}
	n, _ := db.CountPending()
	if n != 0 {
		t.Errorf("CountPending = %d, want 0 (rejections are not queued)", n)
	}
}

func TestLoadMessagesFallsBackToCacheOnNetworkError(t *testing.T) {
	db := testDB(t)

	// Populate the local cache.
	for i, c := range []string{"a", "b"} {
		if err := db.UpsertMessage(&store.Message{
			ID: fmt.Sprintf("m%d", i), ChatID: "general", Content: c,
			CreatedAt: int64(1000 + i), Synced: true,
		}); err != nil {
			t.Fatal(err)
		}
	}

	rem := &stubRemote{fetchErr: &remote.NetworkError{Op: "fetch", Err: fmt.Errorf("down")}}
	svc := NewMessageService(db, rem, fixedNet(true), nil, nil, 50)

	msgs, err := svc.LoadMessages(context.Background(), "general")
	if err != nil {
		t.Fatalf("err = %v, want cached fallback instead of an error", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "a" || msgs[1].Content != "b" {
		t.Errorf("got %+v, want the two cached messages in order", msgs)
	}
}

func TestLoadMessagesOnlineMirrorsRemote(t *testing.T) {
	db := testDB(t)
	rem := &stubRemote{fetchMsgs: []remote.Message{
		{ID: "m1", ChatID: "general", Content: "a", CreatedAt: 1000},
		{ID: "m2", ChatID: "general", Content: "b", CreatedAt: 2000},
	}}
	svc := NewMessageService(db, rem, fixedNet(true), nil, nil, 50)

	msgs, err := svc.LoadMessages(context.Background(), "general")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	for _, m := range msgs {
		if !m.Synced {
			t.Errorf("mirrored message %q not marked synced", m.ID)
		}
	}

	// The mirror survives going offline.
	offline := NewMessageService(db, rem, fixedNet(false), nil, nil, 50)
	msgs, err = offline.LoadMessages(context.Background(), "general")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Errorf("got %d cached messages offline, want 2", len(msgs))
	}
}

func TestLoadMessagesIncludesPendingEcho(t *testing.T) {
	db := testDB(t)
	rem := &stubRemote{fetchMsgs: []remote.Message{
		{ID: "m1", ChatID: "general", Content: "a", CreatedAt: 1000},
	}}
	svc := NewMessageService(db, rem, fixedNet(true), nil, nil, 50)

	// A queued optimistic message must not disappear from reads.
	local := &store.Message{
		ID: store.TempIDPrefix + "x", ChatID: "general",
		Content: "queued", CreatedAt: 2000,
	}
	if err := db.CreateLocalMessage(local, "key-x"); err != nil {
		t.Fatal(err)
	}

	msgs, err := svc.LoadMessages(context.Background(), "general")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[1].Content != "queued" || !msgs[1].Pending {
		t.Errorf("got %+v, want remote row then the pending echo", msgs)
	}
}
