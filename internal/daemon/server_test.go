package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kanux/kanuxd/internal/app"
	"github.com/kanux/kanuxd/internal/bus"
	"github.com/kanux/kanuxd/internal/config"
	"github.com/kanux/kanuxd/internal/netmon"
	"github.com/kanux/kanuxd/internal/remote"
	"github.com/kanux/kanuxd/internal/status"
	"github.com/kanux/kanuxd/internal/store"
	"github.com/kanux/kanuxd/internal/syncer"
	"go.uber.org/zap"
)

// offlineRemote fails every call, keeping the daemon in offline behavior.
type offlineRemote struct{}

func (offlineRemote) InsertMessage(context.Context, remote.NewMessage) (*remote.Message, error) {
	return nil, &remote.NetworkError{Op: "insert", Err: fmt.Errorf("down")}
}

func (offlineRemote) InsertTicket(context.Context, remote.NewTicket) (*remote.Ticket, error) {
	return nil, &remote.NetworkError{Op: "insert", Err: fmt.Errorf("down")}
}

func (offlineRemote) FetchMessages(context.Context, string, int) ([]remote.Message, error) {
	return nil, &remote.NetworkError{Op: "fetch", Err: fmt.Errorf("down")}
}

func (offlineRemote) FetchTickets(context.Context, string, int) ([]remote.Ticket, error) {
	return nil, &remote.NetworkError{Op: "fetch", Err: fmt.Errorf("down")}
}

func (offlineRemote) FetchCompany(context.Context, string) (*remote.Company, error) {
	return nil, &remote.NetworkError{Op: "fetch", Err: fmt.Errorf("down")}
}

func (offlineRemote) Ping(context.Context) error {
	return &remote.NetworkError{Op: "ping", Err: fmt.Errorf("down")}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	b := bus.New()
	machine := status.NewMachine(b)
	rs := offlineRemote{}
	mon := netmon.NewMonitor(netmon.NewRemoteProber(rs), time.Hour, b, logger)

	p := Params{Profile: "test", Config: config.Default()}
	srv := NewServer(p,
		machine,
		mon,
		syncer.NewEngine(db, rs, mon, b, logger, syncer.Policy{}),
		db,
		app.NewMessageService(db, rs, mon, b, logger, 50),
		app.NewTicketService(db, rs, mon, b, logger, 50),
		app.NewDirectoryService(db, rs, mon, logger),
		logger,
	)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, dest any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body, dest any) int {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode
}

func TestPing(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/ping")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var st struct {
		State      string `json:"state"`
		Online     bool   `json:"online"`
		PendingOps int    `json:"pending_ops"`
	}
	if code := getJSON(t, ts.URL+"/v1/status", &st); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if st.State != string(status.Booting) || st.Online || st.PendingOps != 0 {
		t.Errorf("got %+v, want fresh booting daemon", st)
	}
}

func TestSendAndListMessagesOffline(t *testing.T) {
	ts := newTestServer(t)

	var msg store.Message
	code := postJSON(t, ts.URL+"/v1/chats/general/messages",
		map[string]string{"author_id": "u1", "content": "hello"}, &msg)
	if code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", code)
	}
	if !strings.HasPrefix(msg.ID, store.TempIDPrefix) || !msg.Pending {
		t.Errorf("got %+v, want pending optimistic echo", msg)
	}

	var msgs []store.Message
	if code := getJSON(t, ts.URL+"/v1/chats/general/messages", &msgs); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(msgs) != 1 || msgs[0].ID != msg.ID {
		t.Errorf("got %+v, want the queued message", msgs)
	}

	// Pending count is visible through the status endpoint.
	var st struct {
		PendingOps int `json:"pending_ops"`
	}
	getJSON(t, ts.URL+"/v1/status", &st)
	if st.PendingOps != 1 {
		t.Errorf("pending_ops = %d, want 1", st.PendingOps)
	}
}

func TestSendMessageValidationMapsTo400(t *testing.T) {
	ts := newTestServer(t)

	code := postJSON(t, ts.URL+"/v1/chats/general/messages",
		map[string]string{"author_id": "u1", "content": "  "}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestSyncSkippedWhileOffline(t *testing.T) {
	ts := newTestServer(t)

	var out struct {
		Skipped bool `json:"skipped"`
	}
	code := postJSON(t, ts.URL+"/v1/sync", map[string]string{}, &out)
	if code != http.StatusAccepted || !out.Skipped {
		t.Errorf("got code=%d skipped=%v, want 202 skipped", code, out.Skipped)
	}
}

func TestTicketsRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	var tk store.Ticket
	code := postJSON(t, ts.URL+"/v1/tickets",
		map[string]string{"company_id": "acme", "title": "vpn down"}, &tk)
	if code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", code)
	}
	if !tk.Pending || tk.Status != "open" {
		t.Errorf("got %+v, want pending open ticket", tk)
	}

	var tks []store.Ticket
	if code := getJSON(t, ts.URL+"/v1/tickets?company_id=acme", &tks); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(tks) != 1 {
		t.Errorf("got %d tickets, want 1", len(tks))
	}
}

func TestSignOutWipesStore(t *testing.T) {
	ts := newTestServer(t)

	postJSON(t, ts.URL+"/v1/chats/general/messages",
		map[string]string{"author_id": "u1", "content": "hello"}, nil)

	if code := postJSON(t, ts.URL+"/v1/signout", map[string]string{}, nil); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	var msgs []store.Message
	getJSON(t, ts.URL+"/v1/chats/general/messages", &msgs)
	if len(msgs) != 0 {
		t.Errorf("got %d messages after sign-out, want 0", len(msgs))
	}
	var st struct {
		PendingOps int `json:"pending_ops"`
	}
	getJSON(t, ts.URL+"/v1/status", &st)
	if st.PendingOps != 0 {
		t.Errorf("pending_ops = %d, want 0 after sign-out", st.PendingOps)
	}
}

func TestCompanyMissOfflineIs404(t *testing.T) {
	ts := newTestServer(t)

	if code := getJSON(t, ts.URL+"/v1/companies/ghost", nil); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}
