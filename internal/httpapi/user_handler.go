package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/photoshare/photoauth"
	"github.com/photoshare/photoauth/middleware"
)

type avatarRequest struct {
	Avatar string `json:"avatar" validate:"required,url,max=2048"`
}

type roleRequest struct {
	Role photoauth.Role `json:"role"`
}

// GET /api/users/me
func (a *api) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, a.logger, photoauth.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

// PATCH /api/users/avatar. Image hosting is external; the body carries the
// hosted URL.
func (a *api) updateAvatar(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, a.logger, photoauth.ErrUnauthorized)
		return
	}

	var body avatarRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := a.validate.Struct(body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "avatar must be a URL")
		return
	}

	updated, err := a.engine.UpdateAvatar(r.Context(), identity.Email, body.Avatar)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// GET /api/admin/users
func (a *api) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.engine.ListUsers(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// PUT /api/admin/users/{id}/role
func (a *api) updateRole(w http.ResponseWriter, r *http.Request) {
	var body roleRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "role must be one of admin, moderator, user")
		return
	}

	updated, err := a.engine.UpdateRole(r.Context(), chi.URLParam(r, "id"), body.Role)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
