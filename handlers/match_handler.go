package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/arenahub/esports-ops/middleware"
	"github.com/arenahub/esports-ops/models"
	"github.com/arenahub/esports-ops/services"
)

type MatchHandler struct {
	matchService services.MatchOpsService
}

func NewMatchHandler(matchService services.MatchOpsService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

// Create godoc
// @Summary Создать матч турнира
// @Tags matches
// @Accept json
// @Produce json
// @Param tournamentID path int true "ID турнира"
// @Success 201 {object} map[string]interface{}
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/matches [post]
func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input struct {
		RegistrationAID *int      `json:"registration_a_id,omitempty"`
		RegistrationBID *int      `json:"registration_b_id,omitempty"`
		ScheduledAt     time.Time `json:"scheduled_at"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.ScheduledAt.IsZero() {
		badRequestResponse(w, r, errors.New("scheduled_at is required"))
		return
	}

	match, err := h.matchService.CreateMatch(r.Context(), tournamentID, actorID, input.RegistrationAID, input.RegistrationBID, input.ScheduledAt)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListByTournament godoc
// @Summary Список матчей турнира
// @Tags matches
// @Produce json
// @Param tournamentID path int true "ID турнира"
// @Param status query string false "Фильтр по статусу"
// @Success 200 {object} map[string]interface{}
// @Router /tournaments/{tournamentID}/matches [get]
func (h *MatchHandler) ListByTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var statusFilter *models.MatchStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.MatchStatus(raw)
		statusFilter = &status
	}

	matches, err := h.matchService.ListByTournament(r.Context(), tournamentID, statusFilter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Get godoc
// @Summary Матч по ID
// @Tags matches
// @Produce json
// @Param matchID path int true "ID матча"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /matches/{matchID} [get]
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// MarkLive godoc
// @Summary Перевести матч в live
// @Tags matches
// @Produce json
// @Param matchID path int true "ID матча"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matches/{matchID}/live [post]
func (h *MatchHandler) MarkLive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(matchID, actorID int) (interface{}, error) {
		return h.matchService.MarkLive(r.Context(), matchID, actorID)
	})
}

// Pause godoc
// @Summary Поставить live-матч на паузу
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path int true "ID матча"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matches/{matchID}/pause [post]
func (h *MatchHandler) Pause(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}
	h.transition(w, r, func(matchID, actorID int) (interface{}, error) {
		return h.matchService.Pause(r.Context(), matchID, actorID, input.Reason)
	})
}

// Resume godoc
// @Summary Снять матч с паузы
// @Tags matches
// @Produce json
// @Param matchID path int true "ID матча"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matches/{matchID}/resume [post]
func (h *MatchHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(matchID, actorID int) (interface{}, error) {
		return h.matchService.Resume(r.Context(), matchID, actorID)
	})
}

// ForceComplete godoc
// @Summary Принудительно завершить матч
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path int true "ID матча"
// @Param input body services.ForceCompleteInput true "Причина и результат"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matches/{matchID}/force-complete [post]
func (h *MatchHandler) ForceComplete(w http.ResponseWriter, r *http.Request) {
	var input services.ForceCompleteInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.transition(w, r, func(matchID, actorID int) (interface{}, error) {
		return h.matchService.ForceComplete(r.Context(), matchID, actorID, input)
	})
}

// AddNote godoc
// @Summary Добавить заметку к матчу
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path int true "ID матча"
// @Success 201 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matches/{matchID}/notes [post]
func (h *MatchHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input struct {
		Body string `json:"body"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	note, err := h.matchService.AddNote(r.Context(), matchID, actorID, input.Body)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"note": note}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListNotes godoc
// @Summary Заметки матча
// @Tags matches
// @Produce json
// @Param matchID path int true "ID матча"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matches/{matchID}/notes [get]
func (h *MatchHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	notes, err := h.matchService.ListNotes(r.Context(), matchID, actorID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"notes": notes}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) transition(w http.ResponseWriter, r *http.Request, op func(matchID, actorID int) (interface{}, error)) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	match, err := op(matchID, actorID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
