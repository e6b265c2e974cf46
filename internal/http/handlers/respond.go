package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/hospitalms/patient-portal/internal/scheduling"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: kind, Message: message})
}

// writeWorkflowError renders a scheduling failure with the text the patient
// sees in the form.
func writeWorkflowError(w http.ResponseWriter, err error) {
	kind := scheduling.Kind(err)
	writeError(w, statusForOutcome(kind), kind, scheduling.Message(err))
}

func statusForOutcome(kind string) int {
	switch kind {
	case scheduling.OutcomePastDate, scheduling.OutcomeReasonTooLong:
		return http.StatusUnprocessableEntity
	case scheduling.OutcomeFullyBooked, scheduling.OutcomeNotEditable:
		return http.StatusConflict
	case scheduling.OutcomeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}
