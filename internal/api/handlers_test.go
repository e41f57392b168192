package api_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/lendingledger/internal/api"
	"github.com/punchamoorthee/lendingledger/internal/service"
	"github.com/punchamoorthee/lendingledger/internal/store/storetest"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newServer(t *testing.T) http.Handler {
	t.Helper()
	db := storetest.New(t)
	return api.NewHandler(db, service.NewLendingService(db), service.NewReportService(db), nil).Routes()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createdID(t *testing.T, rec *httptest.ResponseRecorder) int64 {
	t.Helper()
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[struct {
		ID int64 `json:"id"`
	}](t, rec).ID
}

func Test_Books_CreateAndGet(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, "POST", "/api/books",
		`{"title":"Dune","author":"Frank Herbert","isbn":"978-0441013593","category":"SF","copies":2,"year":1965}`)
	id := createdID(t, rec)
	assert.Equal(t, "/api/books/1", rec.Header().Get("Location"))

	rec = do(t, h, "GET", "/api/books/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	book := decode[map[string]any](t, rec)
	assert.EqualValues(t, id, book["id"])
	assert.Equal(t, "Dune", book["title"])
	assert.EqualValues(t, 2, book["available_copies"])
	assert.Equal(t, "available", book["status"])

	rec = do(t, h, "POST", "/api/books",
		`{"title":"Emma","author":"Jane Austen","isbn":"978-0141439587","category":"Classic","copies":1}`+"\n")
	createdID(t, rec)
}

func Test_Books_ErrorStatuses(t *testing.T) {
	h := newServer(t)
	do(t, h, "POST", "/api/books", `{"title":"A","author":"B","isbn":"1","category":"C","copies":1}`)

	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"unknown field", "POST", "/api/books", `{"title":"A","author":"B","isbn":"2","category":"C","copies":1,"shelf":"x"}`, http.StatusBadRequest},
		{"malformed", "POST", "/api/books", `{"title":`, http.StatusBadRequest},
		{"trailing value", "POST", "/api/books", `{"title":"A","author":"B","isbn":"3","category":"C","copies":1}{"title":"X"}`, http.StatusBadRequest},
		{"trailing garbage", "POST", "/api/books", `{"title":"A","author":"B","isbn":"4","category":"C","copies":1} }`, http.StatusBadRequest},
		{"missing fields", "POST", "/api/books", `{"title":"A"}`, http.StatusUnprocessableEntity},
		{"duplicate isbn", "POST", "/api/books", `{"title":"A","author":"B","isbn":"1","category":"C","copies":1}`, http.StatusUnprocessableEntity},
		{"not found", "GET", "/api/books/999", "", http.StatusNotFound},
		{"non numeric id", "GET", "/api/books/abc", "", http.StatusNotFound},
		{"available is not patchable", "PUT", "/api/books/1", `{"available_copies":9}`, http.StatusBadRequest},
		{"empty patch", "PUT", "/api/books/1", `{}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)

			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.path != "/api/books/abc" {
				assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
			}
		})
	}
}

func Test_Lists_AreArrays(t *testing.T) {
	h := newServer(t)

	for _, path := range []string{"/api/books", "/api/members", "/api/borrowing", "/api/borrowing/overdue", "/api/reports/top-books", "/api/reports/monthly"} {
		rec := do(t, h, "GET", path, "")

		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, "[]", rec.Body.String(), path)
	}
}

func Test_Borrowing_Lifecycle(t *testing.T) {
	// arrange
	h := newServer(t)
	bookID := createdID(t, do(t, h, "POST", "/api/books",
		`{"title":"Solo","author":"A","isbn":"solo","category":"C","copies":1}`))
	first := createdID(t, do(t, h, "POST", "/api/members",
		`{"member_id":"M-1","name":"First","email":"first@example.com"}`))
	second := createdID(t, do(t, h, "POST", "/api/members",
		`{"member_id":"M-2","name":"Second","email":"second@example.com"}`))

	// act + assert
	loanID := createdID(t, do(t, h, "POST", "/api/borrowing",
		`{"member_id":`+itoa(first)+`,"book_id":`+itoa(bookID)+`}`))

	rec := do(t, h, "POST", "/api/borrowing", `{"member_id":`+itoa(second)+`,"book_id":`+itoa(bookID)+`}`)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = do(t, h, "DELETE", "/api/books/"+itoa(bookID), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, "GET", "/api/members/"+itoa(first)+"/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"currently_borrowed":1,"total_borrowed":1}`, rec.Body.String())

	rec = do(t, h, "POST", "/api/borrowing/"+itoa(loanID)+"/return", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loan := decode[map[string]any](t, rec)
	assert.Equal(t, "returned", loan["status"])
	assert.NotNil(t, loan["return_date"])
	assert.Equal(t, "Solo", loan["book_title"])

	rec = do(t, h, "POST", "/api/borrowing/"+itoa(loanID)+"/return", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, "GET", "/api/borrowing/status/returned", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = do(t, h, "GET", "/api/borrowing/status/lost", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, "POST", "/api/borrowing/999/return", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, "DELETE", "/api/books/"+itoa(bookID), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func Test_Members_Validation(t *testing.T) {
	h := newServer(t)
	createdID(t, do(t, h, "POST", "/api/members", `{"member_id":"M-1","name":"A","email":"a@example.com"}`))

	rec := do(t, h, "POST", "/api/members", `{"member_id":"M-1","name":"B","email":"b@example.com"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, "GET", "/api/members/status/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = do(t, h, "PUT", "/api/members/1", `{"status":"banned"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func Test_Reports_And_Settings(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, "GET", "/api/reports/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_books":0,"active_members":0,"books_borrowed":0,"overdue_books":0}`, rec.Body.String())

	rec = do(t, h, "GET", "/api/reports/statistics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"active_borrows":0,"returned_books":0,"overdue_books":0,"total_records":0}`, rec.Body.String())

	rec = do(t, h, "GET", "/api/reports/monthly?limit=zero", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, "PUT", "/api/settings", `{"borrow_limit":2,"late_fee_per_day":"1.5"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	settings := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, settings["borrow_limit"])
	assert.Equal(t, "1.5", settings["late_fee_per_day"])

	rec = do(t, h, "PUT", "/api/settings", `{"borrow_limit":-1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func Test_Middleware(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, "OPTIONS", "/api/books", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, "GET", "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = do(t, h, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "library_http_requests_total")
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
