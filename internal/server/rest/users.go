package rest

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/server/services"
)

// multipart envelope allowance on top of the avatar itself
const uploadOverhead = 64 << 10

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *handlers) sendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.users.RequestVerificationEmail(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Verification email sent"})
}

func (h *handlers) verifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.users.VerifyEmail(r.Context(), chi.URLParam(r, "token")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Email verified"})
}

// login implements the OAuth2 password grant form: username and password.
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, r, &validationError{msg: "malformed form body"})
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		h.writeError(w, r, &validationError{msg: "username and password are required"})
		return
	}

	pair, err := h.users.Login(r.Context(), username, password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    common.BearerScheme,
	})
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Me(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// uploadAvatar reads the "file" part. Anything past MaxAvatarSize is kept
// only so the service can reject it as too large.
func (h *handlers) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxAvatarSize+uploadOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.writeError(w, r, common.ErrFileTooLarge)
			return
		}
		h.writeError(w, r, &validationError{msg: "field 'file' is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, services.MaxAvatarSize+1))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.users.UploadAvatar(r.Context(), currentUser(r.Context()).ID, data, header.Header.Get("Content-Type"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
