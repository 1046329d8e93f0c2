package app

import (
	"context"
	"strings"
	"testing"

	"github.com/kanux/kanuxd/internal/remote"
	"github.com/kanux/kanuxd/internal/store"
)

func TestCreateTicketOfflineQueuesWithDefaults(t *testing.T) {
	db := testDB(t)
	svc := NewTicketService(db, &stubRemote{}, fixedNet(false), nil, nil, 50)

	tk, err := svc.CreateTicket(context.Background(), NewTicketInput{
		CompanyID: "acme",
		Title:     "printer on fire",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(tk.ID, store.TempIDPrefix) {
		t.Errorf("id = %q, want %s prefix", tk.ID, store.TempIDPrefix)
	}
	if tk.Priority != "normal" || tk.Status != "open" {
		t.Errorf("got priority=%q status=%q, want normal/open defaults", tk.Priority, tk.Status)
	}
	if !tk.Pending {
		t.Error("offline ticket not marked pending")
	}

	ops, err := db.PendingOps()
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 || ops[0].Kind != store.OpTicket {
		t.Fatalf("pending ops = %+v, want one ticket op", ops)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	db := testDB(t)
	svc := NewTicketService(db, &stubRemote{}, fixedNet(false), nil, nil, 50)

	_, err := svc.CreateTicket(context.Background(), NewTicketInput{CompanyID: "acme"})
	if !IsValidation(err) {
		t.Errorf("err = %v, want ValidationError for missing title", err)
	}
	_, err = svc.CreateTicket(context.Background(), NewTicketInput{Title: "x"})
	if !IsValidation(err) {
		t.Errorf("err = %v, want ValidationError for missing company", err)
	}
}

func TestCreateTicketOnlineMirrorsServerCopy(t *testing.T) {
	db := testDB(t)
	svc := NewTicketService(db, &stubRemote{}, fixedNet(true), nil, nil, 50)

	tk, err := svc.CreateTicket(context.Background(), NewTicketInput{
		CompanyID: "acme", Title: "vpn down", Priority: "high",
	})
	if err != nil {
		t.Fatal(err)
	}
	if tk.ID != "srv-t1" || !tk.Synced || tk.Pending {
		t.Errorf("got %+v, want synced server copy", tk)
	}
	n, _ := db.CountPending()
	if n != 0 {
		t.Errorf("CountPending = %d, want 0", n)
	}
}

func TestLoadTicketsFallsBackToCacheOnNetworkError(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertTicket(&store.Ticket{
		ID: "t1", CompanyID: "acme", Title: "old one",
		Priority: "low", Status: "open", CreatedAt: 1000, Synced: true,
	}); err != nil {
		t.Fatal(err)
	}

	rem := &stubRemote{fetchErr: &remote.NetworkError{Op: "fetch"}}
	svc := NewTicketService(db, rem, fixedNet(true), nil, nil, 50)

	tks, err := svc.LoadTickets(context.Background(), "acme")
	if err != nil {
		t.Fatalf("err = %v, want cached fallback", err)
	}
	if len(tks) != 1 || tks[0].ID != "t1" {
		t.Errorf("got %+v, want the cached ticket", tks)
	}
}
