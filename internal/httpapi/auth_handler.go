package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/photoshare/photoauth"
	"github.com/photoshare/photoauth/middleware"
)

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type requestEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/auth/signup
func (a *api) signup(w http.ResponseWriter, r *http.Request) {
	var body signupRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	identity, err := a.engine.Signup(r.Context(), photoauth.SignupRequest{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
		BaseURL:  a.baseURLFor(r),
	})
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, identity)
}

// POST /api/auth/login takes an OAuth2 password form: username carries the
// email address.
func (a *api) login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid form body")
		return
	}

	email := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	pair, err := a.engine.Login(r.Context(), email, password)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// POST /api/auth/logout
func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		writeError(w, a.logger, photoauth.ErrUnauthorized)
		return
	}
	if err := a.engine.Logout(r.Context(), token); err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "User logged out successfully"})
}

// GET /api/auth/refresh_token with the refresh token as bearer.
func (a *api) refreshToken(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		writeError(w, a.logger, photoauth.ErrUnauthorized)
		return
	}
	pair, err := a.engine.Refresh(r.Context(), token)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// GET /api/auth/confirmed_email/{token}
func (a *api) confirmedEmail(w http.ResponseWriter, r *http.Request) {
	status, err := a.engine.ConfirmEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		if errors.Is(err, photoauth.ErrAccountNotFound) {
			writeDetail(w, http.StatusBadRequest, "Verification error")
			return
		}
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: status.String()})
}

// POST /api/auth/request_email
func (a *api) requestEmail(w http.ResponseWriter, r *http.Request) {
	var body requestEmailRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := a.validate.Struct(body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "a valid email is required")
		return
	}

	status, err := a.engine.RequestEmailConfirmation(r.Context(), body.Email, a.baseURLFor(r))
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: status.String()})
}
