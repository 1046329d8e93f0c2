package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/kanux/kanuxd/internal/app"
	"github.com/kanux/kanuxd/internal/netmon"
	"github.com/kanux/kanuxd/internal/remote"
	"github.com/kanux/kanuxd/internal/status"
	"github.com/kanux/kanuxd/internal/store"
	"github.com/kanux/kanuxd/internal/syncer"
	"go.uber.org/zap"
)

// Server is the localhost HTTP API consumed by the UI shell and kanuxctl.
type Server struct {
	httpSrv  *http.Server
	router   chi.Router
	machine  *status.Machine
	mon      *netmon.Monitor
	engine   *syncer.Engine
	db       *store.DB
	messages *app.MessageService
	tickets  *app.TicketService
	dir      *app.DirectoryService
	logger   *zap.Logger
}

// NewServer creates the API server bound to the configured listen address.
func NewServer(p Params, machine *status.Machine, mon *netmon.Monitor, engine *syncer.Engine, db *store.DB, messages *app.MessageService, tickets *app.TicketService, dir *app.DirectoryService, logger *zap.Logger) *Server {
	s := &Server{
		machine:  machine,
		mon:      mon,
		engine:   engine,
		db:       db,
		messages: messages,
		tickets:  tickets,
		dir:      dir,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: p.Config.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/sync", s.handleSync)
		r.Get("/chats/{chatID}/messages", s.handleListMessages)
		r.Post("/chats/{chatID}/messages", s.handleSendMessage)
		r.Get("/tickets", s.handleListTickets)
		r.Post("/tickets", s.handleCreateTicket)
		r.Get("/companies/{companyID}", s.handleCompany)
		r.Post("/signout", s.handleSignOut)
	})

	s.router = r
	s.httpSrv = &http.Server{Addr: p.Config.Server.ListenAddr, Handler: r}
	return s
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start blocks serving requests until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("api server listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down, draining in-flight requests.
func (s *Server) Stop(ctx context.Context) {
	_ = s.httpSrv.Shutdown(ctx)
}

type statusResponse struct {
	State      string `json:"state"`
	Online     bool   `json:"online"`
	PendingOps int    `json:"pending_ops"`
	LastSyncMs int64  `json:"last_sync_ms,omitempty"`
	EverSynced bool   `json:"ever_synced"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	pending, err := s.db.CountPending()
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := statusResponse{
		State:      string(s.machine.Current()),
		Online:     s.mon.CurrentlyOnline(),
		PendingOps: pending,
	}
	if last, ok, err := s.db.LastSync(); err == nil && ok {
		resp.LastSyncMs = last.UnixMilli()
		resp.EverSynced = true
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.SyncNow(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if res == nil {
		// Offline or a pass already in flight.
		s.writeJSON(w, http.StatusAccepted, map[string]bool{"skipped": true})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"drained":   res.Drained,
		"dropped":   res.Dropped,
		"remaining": res.Remaining,
	})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.messages.LoadMessages(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AuthorID string `json:"author_id"`
		Content  string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	msg, err := s.messages.SendMessage(r.Context(), chi.URLParam(r, "chatID"), payload.AuthorID, payload.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	tks, err := s.tickets.LoadTickets(r.Context(), r.URL.Query().Get("company_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tks)
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CompanyID   string `json:"company_id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	tk, err := s.tickets.CreateTicket(r.Context(), app.NewTicketInput{
		CompanyID:   payload.CompanyID,
		Title:       payload.Title,
		Description: payload.Description,
		Priority:    payload.Priority,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, tk)
}

func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	c, err := s.dir.Company(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if c == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "company not cached and backend unreachable"})
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

// handleSignOut wipes the local store. Queued writes that never synced are
// discarded with everything else.
func (s *Server) handleSignOut(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.ClearAll(); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("local store cleared on sign-out")
	s.writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var rejected *remote.RemoteRejectedError
	code := http.StatusInternalServerError
	switch {
	case app.IsValidation(err):
		code = http.StatusBadRequest
	case errors.As(err, &rejected):
		code = rejected.Status
	case remote.IsNetwork(err):
		code = http.StatusServiceUnavailable
	case store.IsStorageError(err):
		// Local durability failure, not a remote problem.
		s.logger.Error("storage failure", zap.Error(err))
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}
