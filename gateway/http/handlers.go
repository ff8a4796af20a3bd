package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/ConductionNL/taalhuizen-service-sub000/errors"
	"github.com/ConductionNL/taalhuizen-service-sub000/objectstore"
	"github.com/ConductionNL/taalhuizen-service-sub000/relation"
)

// mutationRequest is the wire shape of link and unlink calls. Owner
// and target are reference paths like /edu/participations/PT1 or the
// canonical /participations/PT1.
type mutationRequest struct {
	Kind   string `json:"kind"`
	Owner  string `json:"owner"`
	Target string `json:"target"`
}

// mutationResponse returns both post-mutation snapshots.
type mutationResponse struct {
	Owner   objectstore.PropertyBag `json:"owner"`
	Target  objectstore.PropertyBag `json:"target,omitempty"`
	Status  string                  `json:"status,omitempty"`
	Changed bool                    `json:"changed"`
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	s.handleMutation(w, r, relation.ActionLink)
}

func (s *Server) handleUnlink(w http.ResponseWriter, r *http.Request) {
	s.handleMutation(w, r, relation.ActionUnlink)
}

func (s *Server) handleMutation(w http.ResponseWriter, r *http.Request, action relation.Action) {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxRequestSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "", "failed to read request body")
		return
	}
	if int64(len(body)) > s.cfg.MaxRequestSize {
		writeError(w, http.StatusRequestEntityTooLarge, "", "request body too large")
		return
	}

	var req mutationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "", "malformed JSON body")
		return
	}

	owner, err := objectstore.ParseRef(req.Owner)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "owner", "owner is not a valid reference")
		return
	}
	target, err := objectstore.ParseRef(req.Target)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "target", "target is not a valid reference")
		return
	}

	result, err := s.syncer.Apply(r.Context(), relation.Operation{
		Action: action,
		Kind:   req.Kind,
		Owner:  owner,
		Target: target,
	}, s.catalog)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mutationResponse{
		Owner:   result.Owner,
		Target:  result.Target,
		Status:  string(result.Status),
		Changed: result.Changed,
	})
}

func (s *Server) handleKinds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"kinds": s.catalog.Names()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	report := s.health.Report(r.Context())
	statusCode := http.StatusOK
	if !report.Healthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, report)
}

// writeFailure maps domain errors onto HTTP status codes. Validation
// failures keep their exact message since clients render it; anything
// else gets a sanitized message with details left to the logs.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	requestID := w.Header().Get("X-Request-ID")
	s.logger.Error("request failed",
		"path", r.URL.Path,
		"request_id", requestID,
		"error", err)

	if ve := errors.AsValidation(err); ve != nil {
		writeError(w, http.StatusUnprocessableEntity, ve.Field, ve.Message)
		return
	}
	if errors.Is(err, errors.ErrUnknownKind) {
		writeError(w, http.StatusUnprocessableEntity, "kind", "unknown relation kind")
		return
	}
	if errors.Is(err, errors.ErrNotFound) {
		writeError(w, http.StatusNotFound, "", "resource not found")
		return
	}
	if errors.Is(err, errors.ErrConflict) {
		writeError(w, http.StatusConflict, "", "concurrent update conflict")
		return
	}
	if se := relation.AsSideError(err); se != nil && se.OwnerApplied {
		// Half-applied state: the client should retry the same call,
		// which is idempotent and heals the asymmetry.
		writeError(w, http.StatusBadGateway, "", "relation partially applied, retry the request")
		return
	}
	if errors.IsTransient(err) {
		if strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "deadline") {
			writeError(w, http.StatusGatewayTimeout, "", "request timeout")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "", "service temporarily unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "", "internal server error")
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, field, message string) {
	response := map[string]any{
		"message": message,
		"status":  statusCode,
	}
	if field != "" {
		response["field"] = field
	}
	writeJSON(w, statusCode, response)
}
