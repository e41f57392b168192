package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/punchamoorthee/lendingledger/internal/domain"
)

func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, books)
}

func (h *Handler) SearchBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	books, err := h.books.Search(r.Context(), q.Get("q"), q.Get("category"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, books)
}

func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	book, err := h.books.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, book)
}

func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var in domain.BookInput
	if err := decodeBody(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.books.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	created(w, "books", id)
}

func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var p domain.BookPatch
	if err := decodeBody(r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	book, err := h.books.Update(r.Context(), id, p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, book)
}

func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.books.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, members)
}

func (h *Handler) SearchMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, members)
}

func (h *Handler) MembersByStatus(w http.ResponseWriter, r *http.Request) {
	status := domain.MemberStatus(mux.Vars(r)["status"])
	members, err := h.members.FilterByStatus(r.Context(), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, members)
}

func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	member, err := h.members.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, member)
}

func (h *Handler) MemberStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	stats, err := h.members.Stats(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var in domain.MemberInput
	if err := decodeBody(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.members.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	created(w, "members", id)
}

func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var p domain.MemberPatch
	if err := decodeBody(r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	member, err := h.members.Update(r.Context(), id, p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, member)
}

func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.members.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var p domain.SettingsPatch
	if err := decodeBody(r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	settings, err := h.settings.Update(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}
