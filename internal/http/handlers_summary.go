package http

import (
	"net/http"

	"finan/internal/core"
	"finan/internal/ledger"
)

type monthSummaryResponse struct {
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	MonthLabel string `json:"monthLabel"`
	core.Summary
}

type categorySharesResponse struct {
	Year       int                  `json:"year"`
	Month      int                  `json:"month"`
	Categories []core.CategoryShare `json:"categories"`
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request, userID int64) {
	p, err := ParseMonthParams(r.URL.Query(), s.today())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.ledger.MonthlySummary(r.Context(), userID, p.Month, p.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Body(monthSummaryResponse{Year: p.Year, Month: p.Month, MonthLabel: core.MonthLabel(p.Month), Summary: sum}).
		Write(w)
}

func (s *Server) handlePreviousSummary(w http.ResponseWriter, r *http.Request, userID int64) {
	sum, err := s.ledger.PreviousMonthSummary(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := s.today()
	month, year := core.PreviousMonth(int(now.Month()), now.Year())
	NewJSONResponse().
		Body(monthSummaryResponse{Year: year, Month: month, MonthLabel: core.MonthLabel(month), Summary: sum}).
		Write(w)
}

func (s *Server) handleTotalSummary(w http.ResponseWriter, r *http.Request, userID int64) {
	sum, err := s.ledger.TotalSummary(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(sum).Write(w)
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request, userID int64) {
	cmp, err := s.ledger.Compare(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(cmp).Write(w)
}

// handleCategoryShares returns the month's expense per category with its
// share of the month's total expense.
func (s *Server) handleCategoryShares(w http.ResponseWriter, r *http.Request, userID int64) {
	p, err := ParseMonthParams(r.URL.Query(), s.today())
	if err != nil {
		writeError(w, r, err)
		return
	}
	shares, err := s.ledger.CategoryShares(r.Context(), userID, p.Month, p.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Body(categorySharesResponse{Year: p.Year, Month: p.Month, Categories: shares}).
		Write(w)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, userID int64) {
	count, err := ParseCount(r.URL.Query(), s.historyCount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hist, err := s.ledger.History(r.Context(), userID, count)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(hist).Write(w)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request, userID int64) {
	period, err := ledger.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.ledger.Statistics(r.Context(), userID, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(st).Write(w)
}
