package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alexanderramin/workorders/internal/completion"
	"github.com/alexanderramin/workorders/internal/domain"
)

// errorBody is the single error payload of the API.
type errorBody struct {
	Error   string               `json:"error"`
	Kind    string               `json:"kind"`
	Service string               `json:"service,omitempty"`
	Step    string               `json:"step,omitempty"`
	Details []string             `json:"details,omitempty"`
	Errors  []completion.Problem `json:"errors,omitempty"`
}

// errBadRequest marks a request the API could not decode.
type errBadRequest struct{ msg string }

func (e *errBadRequest) Error() string { return e.msg }

func badRequest(msg string) error { return &errBadRequest{msg: msg} }

// classify maps an error to a status code and payload.
func classify(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}

	var bad *errBadRequest
	var guard *domain.GuardViolation
	var lookup *domain.LookupFailure
	var step *completion.StepFailure
	switch {
	case errors.As(err, &bad):
		body.Kind = "bad_request"
		return http.StatusBadRequest, body
	case errors.As(err, &step):
		body.Kind = "step_failed"
		body.Step = step.Step
		for _, c := range step.CompensationErrors {
			body.Details = append(body.Details, c.Step+": "+c.Err.Error())
		}
		return http.StatusBadGateway, body
	case errors.Is(err, domain.ErrStaleState):
		body.Kind = "stale_state"
		return http.StatusConflict, body
	case errors.As(err, &guard):
		body.Kind = "guard"
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &lookup):
		body.Kind = "lookup"
		body.Service = lookup.Service
		if lookup.Err != nil {
			return http.StatusBadGateway, body
		}
		return http.StatusFailedDependency, body
	case errors.Is(err, domain.ErrNotFound):
		body.Kind = "not_found"
		return http.StatusNotFound, body
	default:
		body.Kind = "internal"
		body.Error = "internal error"
		return http.StatusInternalServerError, body
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request_failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, body)
}
