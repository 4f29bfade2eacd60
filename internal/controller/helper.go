package controller

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sharetube/jukebox/internal/apperr"
	"github.com/sharetube/jukebox/pkg/rest"
)

const (
	headerPrefix = "St-"
	userIDHeader = "User-Id"
)

func (c *controller) MustHeader(r *http.Request, key string) (string, error) {
	value := r.Header.Get(headerPrefix + key)
	if value == "" {
		return "", fmt.Errorf("%s was not provided", key)
	}

	return value, nil
}

func urlRoomID(r *http.Request) string {
	return chi.URLParam(r, "room-id")
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps an error to its status. Unclassified errors are logged and
// hidden from the client.
func (c *controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusOf(kind)

	if status == http.StatusInternalServerError {
		c.logger.ErrorContext(r.Context(), "request failed", "error", err)
		rest.WriteJSON(w, status, rest.Envelope{"error": "internal server error"})
		return
	}

	c.logger.InfoContext(r.Context(), "request rejected", "kind", kind, "error", err)
	rest.WriteJSON(w, status, rest.Envelope{"error": err.Error(), "kind": kind})
}

// readRequest decodes and validates the body into req and writes the
// failure response itself. An empty body is accepted when optional is set.
func (c *controller) readRequest(w http.ResponseWriter, r *http.Request, req any, optional bool) bool {
	if err := rest.ReadJSON(r, req); err != nil && !(optional && errors.Is(err, rest.ErrEmptyBody)) {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return false
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return false
	}

	return true
}
