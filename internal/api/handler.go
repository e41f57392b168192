package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/punchamoorthee/lendingledger/internal/domain"
	"github.com/punchamoorthee/lendingledger/internal/service"
	"github.com/punchamoorthee/lendingledger/internal/store"
)

// strictJSON rejects request bodies carrying fields the target type does not declare.
var strictJSON = jsoniter.Config{
	EscapeHTML:             true,
	ValidateJsonRawMessage: true,
	DisallowUnknownFields:  true,
}.Froze()

var errMalformedBody = errors.New("malformed JSON body")

type Handler struct {
	db       *store.DB
	books    *store.BookStore
	members  *store.MemberStore
	settings *store.SettingsStore
	ledger   *service.LendingService
	reports  *service.ReportService
	logger   *slog.Logger
}

func NewHandler(db *store.DB, ledger *service.LendingService, reports *service.ReportService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		db:       db,
		books:    store.NewBookStore(db),
		members:  store.NewMemberStore(db),
		settings: store.NewSettingsStore(db),
		ledger:   ledger,
		reports:  reports,
		logger:   logger,
	}
}

// Routes builds the REST surface under /api plus /metrics.
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(h.requestID, h.instrument)
	r.Handle("/metrics", promhttp.Handler())

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api.HandleFunc("/books", h.ListBooks).Methods("GET")
	api.HandleFunc("/books/search", h.SearchBooks).Methods("GET")
	api.HandleFunc("/books/{id:[0-9]+}", h.GetBook).Methods("GET")
	api.HandleFunc("/books", h.CreateBook).Methods("POST")
	api.HandleFunc("/books/{id:[0-9]+}", h.UpdateBook).Methods("PUT")
	api.HandleFunc("/books/{id:[0-9]+}", h.DeleteBook).Methods("DELETE")

	api.HandleFunc("/members", h.ListMembers).Methods("GET")
	api.HandleFunc("/members/search", h.SearchMembers).Methods("GET")
	api.HandleFunc("/members/status/{status}", h.MembersByStatus).Methods("GET")
	api.HandleFunc("/members/{id:[0-9]+}", h.GetMember).Methods("GET")
	api.HandleFunc("/members/{id:[0-9]+}/stats", h.MemberStats).Methods("GET")
	api.HandleFunc("/members", h.CreateMember).Methods("POST")
	api.HandleFunc("/members/{id:[0-9]+}", h.UpdateMember).Methods("PUT")
	api.HandleFunc("/members/{id:[0-9]+}", h.DeleteMember).Methods("DELETE")

	api.HandleFunc("/borrowing", h.ListLoans).Methods("GET")
	api.HandleFunc("/borrowing/overdue", h.OverdueLoans).Methods("GET")
	api.HandleFunc("/borrowing/member/{id:[0-9]+}", h.MemberLoans).Methods("GET")
	api.HandleFunc("/borrowing/status/{status}", h.LoansByStatus).Methods("GET")
	api.HandleFunc("/borrowing/{id:[0-9]+}", h.GetLoan).Methods("GET")
	api.HandleFunc("/borrowing", h.CreateLoan).Methods("POST")
	api.HandleFunc("/borrowing/{id:[0-9]+}", h.UpdateLoan).Methods("PUT")
	api.HandleFunc("/borrowing/{id:[0-9]+}/return", h.ReturnLoan).Methods("POST")
	api.HandleFunc("/borrowing/{id:[0-9]+}", h.DeleteLoan).Methods("DELETE")

	api.HandleFunc("/reports/statistics", h.Statistics).Methods("GET")
	api.HandleFunc("/reports/monthly", h.MonthlyStats).Methods("GET")
	api.HandleFunc("/reports/top-books", h.TopBooks).Methods("GET")
	api.HandleFunc("/reports/dashboard", h.Dashboard).Methods("GET")

	api.HandleFunc("/settings", h.GetSettings).Methods("GET")
	api.HandleFunc("/settings", h.UpdateSettings).Methods("PUT")

	return cors(r)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "health check failed", "error", err.Error())
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Errorf(domain.ErrValidation, "invalid id %q", mux.Vars(r)["id"])
	}
	return id, nil
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, domain.Errorf(domain.ErrValidation, "invalid limit %q", raw)
	}
	return limit, nil
}

// decodeBody reads exactly one JSON value; anything but whitespace after it is rejected.
func decodeBody(r *http.Request, dst any) error {
	dec := strictJSON.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %s", errMalformedBody, err.Error())
	}
	rest, err := io.ReadAll(io.MultiReader(dec.Buffered(), r.Body))
	if err != nil {
		return fmt.Errorf("%w: %s", errMalformedBody, err.Error())
	}
	if len(bytes.TrimSpace(rest)) > 0 {
		return fmt.Errorf("%w: unexpected data after JSON body", errMalformedBody)
	}
	return nil
}

func created(w http.ResponseWriter, resource string, id int64) {
	w.Header().Set("Location", fmt.Sprintf("/api/%s/%d", resource, id))
	respondWithJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCapacity),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrReferential):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err.Error())
		respondWithError(w, code, "internal server error")
		return
	}
	respondWithError(w, code, err.Error())
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w).Encode(payload)
	}
}
