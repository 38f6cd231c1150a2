package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/photoshare/photoauth"
)

const maxBodyBytes = 1 << 20

// unauthorizedDetail is the single body for every authentication rejection.
const unauthorizedDetail = "Could not validate credentials"

type errorResponse struct {
	Detail string `json:"detail"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeError maps engine errors onto status codes. Unknown errors are
// logged and reported as 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, photoauth.ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, unauthorizedDetail)
	case photoauth.IsRetryable(err), errors.Is(err, photoauth.ErrEngineNotReady):
		logger.Warn("photoauth: dependency unavailable", "error", err)
		writeDetail(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	case errors.Is(err, photoauth.ErrAccountExists):
		writeDetail(w, http.StatusConflict, "Account already exists")
	case errors.Is(err, photoauth.ErrPermissionDenied):
		writeDetail(w, http.StatusForbidden, "Operation not permitted")
	case errors.Is(err, photoauth.ErrInvalidSignup), errors.Is(err, photoauth.ErrRoleInvalid):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, photoauth.ErrAccountNotFound):
		writeDetail(w, http.StatusNotFound, "User not found")
	default:
		logger.Error("photoauth: internal error", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host + "/"
}

func (a *api) baseURLFor(r *http.Request) string {
	if a.baseURL != "" {
		return a.baseURL
	}
	return requestBaseURL(r)
}
