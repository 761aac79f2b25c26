package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	mW "github.com/dropvault/backend/internal/middleware"
	"github.com/dropvault/backend/internal/models"
	"github.com/dropvault/backend/internal/services"
	"github.com/dropvault/backend/internal/types"
)

const maxBodyBytes = 1_048_576

// decodeJSON reads exactly one JSON object into dst, writing the error
// response itself when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// principal returns the caller set by the auth middleware
func principal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := mW.PrincipalFrom(r.Context())
	if !ok {
		services.WriteError(w, types.NewError(types.ErrUnauthorized, "Unauthorized"))
		return models.Principal{}, false
	}
	return p, true
}

// queryLimit parses ?limit=; absent means the service default
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		services.WriteError(w, types.NewError(types.ErrValidation, "limit must be a positive integer"))
		return 0, false
	}
	return limit, true
}
