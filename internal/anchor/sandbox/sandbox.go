// Package sandbox is a scripted stand-in for the wallet backend's anchor
// endpoints. It serves local development and the HTTP client tests.
package sandbox

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/Veraticus/offramp/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultScript is the status sequence used for assets without a script.
var DefaultScript = []model.TransactionStatus{
	model.StatusIncomplete,
	model.StatusPendingUserTransferStart,
}

// Balance is one account balance line served by the sandbox.
type Balance struct {
	AssetCode   string
	AssetIssuer string
	Amount      string
}

// Amounts are the decimal strings reported for every transaction.
type Amounts struct {
	In  string
	Fee string
	Out string
}

// Config scripts the sandbox's behavior.
type Config struct {
	// Scripts maps an asset code to the statuses returned by successive polls.
	// The last status repeats.
	Scripts map[string][]model.TransactionStatus
	// Token, when set, must be presented as a bearer token.
	Token        string
	ConfirmError string
	Amounts      Amounts
	Balances     []Balance
	// FailPolls makes the first N polls of every transaction answer 503.
	FailPolls int
	FailOpen  bool
}

type transaction struct {
	id        string
	assetCode string
	script    []model.TransactionStatus
	polls     int
	served    int
	confirmed bool
}

func (t *transaction) current() model.TransactionStatus {
	if t.confirmed {
		return model.StatusCompleted
	}
	i := t.served - 1
	if i < 0 {
		i = 0
	}
	if i >= len(t.script) {
		i = len(t.script) - 1
	}
	return t.script[i]
}

// Server is an in-memory anchor backend.
type Server struct {
	txs map[string]*transaction
	cfg Config
	seq int
	mu  sync.Mutex
}

// New creates a sandbox server.
func New(cfg Config) *Server {
	if cfg.Amounts == (Amounts{}) {
		cfg.Amounts = Amounts{In: "100.00", Fee: "1.50", Out: "98.50"}
	}
	return &Server{
		cfg: cfg,
		txs: make(map[string]*transaction),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/interactive/{id}", s.handleInteractive)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/anchor/withdraw", s.handleWithdraw)
		r.Get("/anchor/transaction", s.handleTransaction)
		r.Post("/anchor/withdraw-confirm", s.handleConfirm)
		r.Get("/account/balances", s.handleBalances)
	})

	return r
}

// Polls returns how many status requests a transaction has received.
func (s *Server) Polls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx, ok := s.txs[id]; ok {
		return tx.polls
	}
	return 0
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.cfg.Token {
			writeError(w, r, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssetCode string `json:"asset_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.AssetCode) == "" {
		writeError(w, r, "asset_code is required", http.StatusBadRequest)
		return
	}
	if s.cfg.FailOpen {
		writeError(w, r, "anchor unavailable", http.StatusBadGateway)
		return
	}

	s.mu.Lock()
	s.seq++
	id := "sbx-" + strconv.Itoa(s.seq)
	script := s.cfg.Scripts[req.AssetCode]
	if len(script) == 0 {
		script = DefaultScript
	}
	s.txs[id] = &transaction{id: id, assetCode: req.AssetCode, script: script}
	s.mu.Unlock()

	slog.Info("Sandbox withdrawal opened", "transaction_id", id, "asset_code", req.AssetCode)

	writeJSON(w, r, map[string]string{
		"id":   id,
		"url":  fmt.Sprintf("%s/interactive/%s?asset_code=%s", baseURL(r), id, req.AssetCode),
		"type": "interactive_customer_info_needed",
	}, http.StatusOK)
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	assetCode := r.URL.Query().Get("assetCode")

	s.mu.Lock()
	tx, ok := s.txs[id]
	if !ok || tx.assetCode != assetCode {
		s.mu.Unlock()
		writeError(w, r, "transaction not found", http.StatusNotFound)
		return
	}
	tx.polls++
	if tx.polls <= s.cfg.FailPolls {
		s.mu.Unlock()
		writeError(w, r, "status temporarily unavailable", http.StatusServiceUnavailable)
		return
	}
	tx.served++
	status := tx.current()
	s.mu.Unlock()

	record := map[string]string{
		"id":         id,
		"status":     string(status),
		"amount_in":  s.cfg.Amounts.In,
		"amount_fee": s.cfg.Amounts.Fee,
		"amount_out": s.cfg.Amounts.Out,
	}
	if status == model.StatusError {
		record["message"] = "KYC rejected by anchor"
	}
	writeJSON(w, r, map[string]any{"transaction": record}, http.StatusOK)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionID string `json:"transactionId"`
		AssetCode     string `json:"assetCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid request body", http.StatusBadRequest)
		return
	}
	if s.cfg.ConfirmError != "" {
		writeError(w, r, s.cfg.ConfirmError, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[req.TransactionID]
	if !ok || tx.assetCode != req.AssetCode {
		writeError(w, r, "transaction not found", http.StatusNotFound)
		return
	}
	if tx.current() != model.StatusPendingUserTransferStart {
		writeError(w, r, "transaction is not awaiting a transfer", http.StatusConflict)
		return
	}
	tx.confirmed = true

	writeJSON(w, r, map[string]bool{"success": true}, http.StatusOK)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	lines := make([]map[string]string, 0, len(s.cfg.Balances))
	for _, b := range s.cfg.Balances {
		lines = append(lines, map[string]string{
			"asset_code":   b.AssetCode,
			"asset_issuer": b.AssetIssuer,
			"balance":      b.Amount,
		})
	}
	writeJSON(w, r, map[string]any{"balances": lines}, http.StatusOK)
}

var interactivePage = template.Must(template.New("interactive").Parse(`<!doctype html>
<html><head><title>Sandbox anchor</title></head>
<body>
<h1>Sandbox withdrawal {{.ID}}</h1>
<p>Asset: {{.Asset}}</p>
<p>This page stands in for the anchor's KYC and bank details form. Return to the terminal; the client is polling.</p>
</body></html>`))

func (s *Server) handleInteractive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	tx, ok := s.txs[id]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := interactivePage.Execute(w, map[string]string{"ID": tx.id, "Asset": tx.assetCode}); err != nil {
		slog.ErrorContext(r.Context(), "error rendering interactive page", "error", err)
	}
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, r *http.Request, data any, code int) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.ErrorContext(r.Context(), "error marshalling json response", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		slog.ErrorContext(r.Context(), "error writing json response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, msg string, code int) {
	writeJSON(w, r, map[string]string{"error": msg}, code)
}
