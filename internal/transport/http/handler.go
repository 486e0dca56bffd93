package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"elevate-assessment-service/internal/app"
	"elevate-assessment-service/internal/domain"
)

// Handler exposes the assessment use cases over JSON/HTTP. The caller's
// identity arrives in the X-Client-ID header, set by the upstream gateway;
// authentication itself happens there, not here.
type Handler struct {
	service *app.Service
}

func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// Register wires the handler's routes into mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/assignments", h.assign)
	mux.HandleFunc("GET /api/assignments", h.listAssignments)
	mux.HandleFunc("GET /api/assignments/{id}", h.assignmentDetails)
	mux.HandleFunc("POST /api/assignments/{id}/answers", h.saveAnswers)
	mux.HandleFunc("POST /api/assignments/{id}/finalize", h.finalizeAssignment)
	mux.HandleFunc("POST /api/attempts", h.startAttempt)
	mux.HandleFunc("POST /api/attempts/{id}/answers", h.saveAttemptAnswers)
	mux.HandleFunc("POST /api/attempts/{id}/finalize", h.finalizeAttempt)
}

type assignRequest struct {
	ClientID        string     `json:"clientId"`
	QuestionnaireID string     `json:"questionnaireId"`
	StageID         string     `json:"stageId"`
	DueDate         *time.Time `json:"dueDate,omitempty"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a, err := h.service.Assign(r.Context(), req.ClientID, req.QuestionnaireID, req.StageID, req.DueDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	callerID := r.Header.Get("X-Client-ID")
	if callerID == "" {
		writeError(w, http.StatusBadRequest, "missing X-Client-ID header")
		return
	}
	assignments, err := h.service.ListAssignments(r.Context(), callerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (h *Handler) assignmentDetails(w http.ResponseWriter, r *http.Request) {
	callerID := r.Header.Get("X-Client-ID")
	if callerID == "" {
		writeError(w, http.StatusBadRequest, "missing X-Client-ID header")
		return
	}
	details, err := h.service.GetDetails(r.Context(), r.PathValue("id"), callerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

type saveAnswersRequest struct {
	Items  []domain.AnswerItem `json:"items"`
	Submit bool                `json:"submit"`
}

func (h *Handler) saveAnswers(w http.ResponseWriter, r *http.Request) {
	callerID := r.Header.Get("X-Client-ID")
	if callerID == "" {
		writeError(w, http.StatusBadRequest, "missing X-Client-ID header")
		return
	}
	var req saveAnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.SaveAnswers(r.Context(), r.PathValue("id"), callerID, req.Items, req.Submit); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) finalizeAssignment(w http.ResponseWriter, r *http.Request) {
	callerID := r.Header.Get("X-Client-ID")
	if callerID == "" {
		writeError(w, http.StatusBadRequest, "missing X-Client-ID header")
		return
	}
	a, err := h.service.Finalize(r.Context(), r.PathValue("id"), callerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type startAttemptRequest struct {
	QuestionnaireID string `json:"questionnaireId"`
}

func (h *Handler) startAttempt(w http.ResponseWriter, r *http.Request) {
	callerID := r.Header.Get("X-Client-ID")
	if callerID == "" {
		writeError(w, http.StatusBadRequest, "missing X-Client-ID header")
		return
	}
	var req startAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	at, err := h.service.StartAttempt(r.Context(), callerID, req.QuestionnaireID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, at)
}

type saveAttemptAnswersRequest struct {
	Items []app.AttemptAnswerItem `json:"items"`
}

func (h *Handler) saveAttemptAnswers(w http.ResponseWriter, r *http.Request) {
	callerID := r.Header.Get("X-Client-ID")
	if callerID == "" {
		writeError(w, http.StatusBadRequest, "missing X-Client-ID header")
		return
	}
	var req saveAttemptAnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.SaveAttemptAnswers(r.Context(), r.PathValue("id"), callerID, req.Items); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) finalizeAttempt(w http.ResponseWriter, r *http.Request) {
	callerID := r.Header.Get("X-Client-ID")
	if callerID == "" {
		writeError(w, http.StatusBadRequest, "missing X-Client-ID header")
		return
	}
	at, err := h.service.FinalizeAttempt(r.Context(), r.PathValue("id"), callerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, at)
}

type errorPayload struct {
	Message string `json:"message"`
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAccessDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrAssignmentNotFound),
		errors.Is(err, domain.ErrQuestionnaireNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrOptionNotFound),
		errors.Is(err, domain.ErrAttemptNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadySubmitted),
		errors.Is(err, domain.ErrAlreadyAssigned):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorPayload{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
