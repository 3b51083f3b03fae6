package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/domain"
)

// ActorHeader names the user behind a request. Authentication happens upstream.
const ActorHeader = "X-Actor"

const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Entity string `json:"entity,omitempty"`
	ID     string `json:"id,omitempty"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch domain.Kind(err) {
	case domain.ErrValidation, domain.ErrRoutingUnresolved:
		return http.StatusBadRequest
	case domain.ErrForbidden:
		return http.StatusForbidden
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrInvalidTransition, domain.ErrConflict:
		return http.StatusConflict
	case domain.ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, r *http.Request, log logger.Logger, action string, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}
	if k := domain.Kind(err); k != nil {
		resp.Kind = k.Error()
	}
	if de, ok := domain.AsError(err); ok {
		resp.Entity = de.Entity
		resp.ID = de.ID
	}
	if status >= http.StatusInternalServerError {
		log.Error(action, "Request failed", middleware.GetReqID(r.Context()), map[string]interface{}{
			"path":   r.URL.Path,
			"status": status,
		}, err)
		if status == http.StatusInternalServerError {
			resp.Error = "internal server error"
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readJSON decodes a single JSON object and rejects unknown fields.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError("request", "", "invalid request body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return domain.NewValidationError("request", "", "request body must contain a single JSON object")
	}
	return nil
}

func actorFrom(r *http.Request) (string, error) {
	actor := r.Header.Get(ActorHeader)
	if actor == "" {
		return "", domain.NewValidationError("request", "", "%s header is required", ActorHeader)
	}
	return actor, nil
}

func queryRequired(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", domain.NewValidationError("request", "", "query parameter %s is required", name)
	}
	return v, nil
}
