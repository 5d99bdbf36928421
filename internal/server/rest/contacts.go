package rest

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const defaultListLimit = 100

func (h *handlers) createContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := req.toModel()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.contacts.Create(r.Context(), subjectOf(currentUser(r.Context())), c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContactResponse(created))
}

func (h *handlers) listContacts(w http.ResponseWriter, r *http.Request) {
	skip, err := intQuery(r, "skip", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit", defaultListLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	cs, err := h.contacts.List(r.Context(), subjectOf(currentUser(r.Context())), skip, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContactResponses(cs))
}

func (h *handlers) searchContacts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		h.writeError(w, r, &validationError{msg: "field 'query' is required"})
		return
	}

	cs, err := h.contacts.Search(r.Context(), subjectOf(currentUser(r.Context())), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContactResponses(cs))
}

func (h *handlers) upcomingBirthdays(w http.ResponseWriter, r *http.Request) {
	cs, err := h.contacts.UpcomingBirthdays(r.Context(), subjectOf(currentUser(r.Context())))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContactResponses(cs))
}

func (h *handlers) getContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.contacts.Get(r.Context(), subjectOf(currentUser(r.Context())), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContactResponse(c))
}

func (h *handlers) updateContact(w http.ResponseWriter, r *http.Request) {
	var req contactPatchRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	c, err := h.contacts.Update(r.Context(), subjectOf(currentUser(r.Context())), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContactResponse(c))
}

func (h *handlers) deleteContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.contacts.Delete(r.Context(), subjectOf(currentUser(r.Context())), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContactResponse(c))
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &validationError{msg: "field '" + name + "' must be an integer"}
	}
	return n, nil
}
