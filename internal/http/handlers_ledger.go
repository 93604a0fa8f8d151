package http

import (
	"net/http"
	"strings"

	"finan/internal/core"
)

type categoryRequest struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// handleListCategories lists the categories visible to the user, optionally
// filtered with ?kind=income|expense.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, userID int64) {
	var (
		cats []core.Category
		err  error
	)
	if k := strings.TrimSpace(r.URL.Query().Get("kind")); k != "" {
		kind, perr := core.ParseKind(k)
		if perr != nil {
			writeError(w, r, perr)
			return
		}
		cats, err = s.ledger.CategoriesByKind(r.Context(), userID, kind)
	} else {
		cats, err = s.ledger.ListCategories(r.Context(), userID)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(cats).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, userID int64) {
	var req categoryRequest
	if !decode(w, r, maxBodyBytes, &req) {
		return
	}
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.ledger.AddCategory(r.Context(), userID, sanitizeInput(req.Name), kind,
		sanitizeInput(req.Icon), sanitizeInput(req.Color))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(c).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, userID int64) {
	txs, err := s.ledger.ListTransactions(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(txs).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := ParseID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.ledger.GetTransaction(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(t).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, userID int64) {
	var req transactionRequest
	if !decode(w, r, maxBodyBytes, &req) {
		return
	}
	in, err := req.toInput(s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.ledger.CreateTransaction(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(t).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := ParseID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req transactionRequest
	if !decode(w, r, maxBodyBytes, &req) {
		return
	}
	in, err := req.toInput(s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.ledger.UpdateTransaction(r.Context(), userID, id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(t).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := ParseID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
