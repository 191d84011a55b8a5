// Package api is the read-only local browse server over an existing
// card store. It is a consumer of the store contract, not part of the
// ingestion core.
package api

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"cardsync/internal/db"
	"cardsync/internal/logger"
)

// Server serves JSON card lookups and a minimal HTML listing.
type Server struct {
	db *db.DB
}

// NewServer creates a Server over an open store.
func NewServer(database *db.DB) *Server {
	return &Server{db: database}
}

// Handler returns the HTTP handler with all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/cards", s.handleSearch)
	mux.HandleFunc("GET /api/cards/{cardID}", s.handleCard)
	mux.HandleFunc("GET /", s.handleIndex)
	return mux
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	results, err := s.db.QueryByName(name, limit)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, results)
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := strconv.ParseInt(r.PathValue("cardID"), 10, 64)
	if err != nil {
		http.Error(w, "bad card id", http.StatusBadRequest)
		return
	}
	card, err := s.db.GetCard(cardID)
	if err != nil {
		httpError(w, err)
		return
	}
	if card == nil {
		http.Error(w, "card not found", http.StatusNotFound)
		return
	}
	skills, err := s.db.GetSkills(cardID)
	if err != nil {
		httpError(w, err)
		return
	}
	card.Skills = skills
	writeJSON(w, card)
}

var indexTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>cardsync</title></head>
<body>
<h1>cardsync ({{.Count}} cards)</h1>
<form method="get"><input name="name" value="{{.Query}}" placeholder="card name"><button>search</button></form>
<table border="1" cellpadding="4">
<tr><th>ID</th><th>Name</th><th>Expansion</th><th>No.</th><th>Type</th></tr>
{{range .Results}}<tr>
<td><a href="/api/cards/{{.CardID}}">{{.CardID}}</a></td>
<td>{{.Name}}</td><td>{{.ExpansionCode}}</td><td>{{.CollectorNumber}}</td><td>{{.CardType}}</td>
</tr>{{end}}
</table>
</body></html>`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	results, err := s.db.QueryByName(name, 100)
	if err != nil {
		httpError(w, err)
		return
	}
	count, err := s.db.CountCards()
	if err != nil {
		httpError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	indexTmpl.Execute(w, map[string]any{
		"Query":   name,
		"Results": results,
		"Count":   count,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, err error) {
	logger.Error("api", err.Error())
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// ListenAndServe runs the browse server until the process exits.
func (s *Server) ListenAndServe(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	logger.Info("api", fmt.Sprintf("listening on http://%s", addr))
	return http.ListenAndServe(addr, s.Handler())
}
