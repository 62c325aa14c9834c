package handlers

import (
	"net/http"

	"github.com/blackbirdcodelabs/jnanagni-backend/middleware"
	"github.com/blackbirdcodelabs/jnanagni-backend/services"
)

type ResultHandler struct {
	roundService services.RoundService
}

func NewResultHandler(roundService services.RoundService) *ResultHandler {
	return &ResultHandler{roundService: roundService}
}

func (h *ResultHandler) eventRoundParams(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return 0, 0, false
	}
	roundID, err := urlParamInt(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return 0, 0, false
	}
	return eventID, roundID, true
}

func (h *ResultHandler) CreateResults(w http.ResponseWriter, r *http.Request) {
	eventID, roundID, ok := h.eventRoundParams(w, r)
	if !ok {
		return
	}

	var input services.CreateResultsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.roundService.CreateResults(r.Context(), eventID, roundID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultHandler) PublishResults(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	eventID, roundID, ok := h.eventRoundParams(w, r)
	if !ok {
		return
	}

	result, err := h.roundService.PublishResults(r.Context(), eventID, roundID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	middleware.ResultsPublishedTotal.Inc()
	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultHandler) UnpublishResults(w http.ResponseWriter, r *http.Request) {
	eventID, roundID, ok := h.eventRoundParams(w, r)
	if !ok {
		return
	}

	result, err := h.roundService.UnpublishResults(r.Context(), eventID, roundID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultHandler) DeleteResults(w http.ResponseWriter, r *http.Request) {
	eventID, roundID, ok := h.eventRoundParams(w, r)
	if !ok {
		return
	}

	if err := h.roundService.DeleteResults(r.Context(), eventID, roundID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetResults is the admin view: drafts are visible.
func (h *ResultHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	eventID, roundID, ok := h.eventRoundParams(w, r)
	if !ok {
		return
	}

	result, err := h.roundService.GetResults(r.Context(), eventID, roundID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetPublicResults hides drafts: a pending round reads as "not announced yet".
func (h *ResultHandler) GetPublicResults(w http.ResponseWriter, r *http.Request) {
	eventID, roundID, ok := h.eventRoundParams(w, r)
	if !ok {
		return
	}

	result, err := h.roundService.GetPublicResults(r.Context(), eventID, roundID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"result": result}
	if result == nil {
		response["message"] = "results have not been announced yet"
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultHandler) GetAllResultsByEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	results, err := h.roundService.GetAllResultsByEvent(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"results": results}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultHandler) GetQualifiedTeams(w http.ResponseWriter, r *http.Request) {
	eventID, roundID, ok := h.eventRoundParams(w, r)
	if !ok {
		return
	}

	teams, err := h.roundService.GetQualifiedTeams(r.Context(), eventID, roundID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"qualified_teams": teams}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
