package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/logger"
	"github.com/mind-engage/mindengage-qbank/internal/session"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, bank.ErrNotFound), errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, bank.ErrValidation), errors.Is(err, session.ErrOutOfRange), errors.Is(err, session.ErrUnknownOption):
		return http.StatusBadRequest
	case errors.Is(err, bank.ErrConflict), errors.Is(err, session.ErrTransition),
		errors.Is(err, session.ErrSessionClosed), errors.Is(err, session.ErrLeaseHeld):
		return http.StatusConflict
	case errors.Is(err, session.ErrBadLease):
		return http.StatusForbidden
	case errors.Is(err, session.ErrNoExamPossible):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders {"error": "..."}. Server-side failures are logged and
// their detail is kept out of the response.
func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	if errors.Is(err, session.ErrNoExamPossible) {
		msg = "no exam possible: " + msg
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into v and runs its validate tags.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("bad json: %w", bank.ErrValidation)
	}
	if err := validate.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make([]string, 0, len(ve))
			for _, fe := range ve {
				fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
			}
			return fmt.Errorf("invalid %s: %w", strings.Join(fields, ", "), bank.ErrValidation)
		}
		return fmt.Errorf("%v: %w", err, bank.ErrValidation)
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s %q: %w", name, raw, bank.ErrValidation)
	}
	return id, nil
}

// leaseFrom takes the session lease from "Authorization: Bearer" or, for
// clients that cannot set that header, X-Session-Lease.
func leaseFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.Header.Get("X-Session-Lease")
}

func success(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
