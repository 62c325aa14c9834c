package handlers

import (
	"errors"
	"net/http"

	"github.com/blackbirdcodelabs/jnanagni-backend/middleware"
	"github.com/blackbirdcodelabs/jnanagni-backend/services"
)

type AttendanceHandler struct {
	attService services.AttendanceService
}

func NewAttendanceHandler(attService services.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attService: attService}
}

// Mark handles the scanner's check-in request. An incomplete team produces a
// 409 with requires_confirmation set; the volunteer resubmits with force=true
// to record the check-in anyway.
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	scannedBy, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	roundID, err := urlParamInt(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.MarkInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.JnanagniID == "" {
		badRequestResponse(w, r, errors.New("jnanagni_id is required"))
		return
	}
	input.EventID = eventID
	input.RoundID = roundID
	input.ScannedBy = scannedBy

	outcome, err := h.attService.Mark(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if outcome.RequiresConfirmation {
		if err := writeJSON(w, http.StatusConflict, outcome, nil); err != nil {
			serverErrorResponse(w, r, err)
		}
		return
	}

	middleware.CheckInsTotal.Inc()
	if err := writeJSON(w, http.StatusOK, outcome, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AttendanceHandler) Unmark(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	roundID, err := urlParamInt(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		JnanagniID string `json:"jnanagni_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.JnanagniID == "" {
		badRequestResponse(w, r, errors.New("jnanagni_id is required"))
		return
	}

	if err := h.attService.Unmark(r.Context(), eventID, roundID, input.JnanagniID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AttendanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	roundID, err := urlParamInt(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	stats, err := h.attService.Stats(r.Context(), eventID, roundID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"stats": stats}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AttendanceHandler) ListByRound(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	roundID, err := urlParamInt(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	records, err := h.attService.ListByRound(r.Context(), eventID, roundID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"attendance": records}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
