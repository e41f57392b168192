package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/punchamoorthee/lendingledger/internal/domain"
)

func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.ledger.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, loans)
}

func (h *Handler) OverdueLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.ledger.ListOverdue(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, loans)
}

func (h *Handler) MemberLoans(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	loans, err := h.ledger.ListByMember(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, loans)
}

func (h *Handler) LoansByStatus(w http.ResponseWriter, r *http.Request) {
	loans, err := h.ledger.ListByStatus(r.Context(), domain.LoanStatus(mux.Vars(r)["status"]))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, loans)
}

func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	loan, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, loan)
}

func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req domain.LoanRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.ledger.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	created(w, "borrowing", id)
}

func (h *Handler) UpdateLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var p domain.LoanPatch
	if err := decodeBody(r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	loan, err := h.ledger.Update(r.Context(), id, p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, loan)
}

func (h *Handler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	loan, err := h.ledger.RecordReturn(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, loan)
}

func (h *Handler) DeleteLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.ledger.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.Statistics(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (h *Handler) MonthlyStats(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	trend, err := h.reports.MonthlyTrend(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, trend)
}

func (h *Handler) TopBooks(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	top, err := h.reports.TopBooks(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, top)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.reports.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, dash)
}
