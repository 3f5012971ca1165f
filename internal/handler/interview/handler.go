package interview

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/prepx/backend/internal/middleware"
	"github.com/zhouzirui/prepx/backend/internal/model/interview"
	"github.com/zhouzirui/prepx/backend/pkg/utils"
)

const defaultLatestLimit = 20

// Handler serves interview cards and their feedback. Routes expect
// middleware.RequireUser upstream.
type Handler struct {
	store interview.Store
	now   func() time.Time
}

// New 创建面试卡片处理器
func New(store interview.Store) *Handler {
	return &Handler{store: store, now: time.Now}
}

// RegisterRoutes 注册面试相关路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/interviews", func(r chi.Router) {
		r.Get("/", h.handleListMine)
		r.Get("/latest", h.handleListLatest)
		r.Get("/{interviewID}", h.handleGet)
		r.Get("/{interviewID}/feedback", h.handleFeedback)
	})
}

type detailResponse struct {
	Interview interview.Interview `json:"interview"`
	Card      interview.Card      `json:"card"`
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	items, err := h.store.ListByUser(r.Context(), current.ID)
	if err != nil {
		log.Printf("[interview] list user=%s failed: %v", current.ID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load interviews")
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.cards(r.Context(), items, current.ID))
}

func (h *Handler) handleListLatest(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	limit := defaultLatestLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	items, err := h.store.ListLatest(r.Context(), current.ID, limit)
	if err != nil {
		log.Printf("[interview] list latest failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load interviews")
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.cards(r.Context(), items, current.ID))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	item, err := h.store.FindByID(r.Context(), chi.URLParam(r, "interviewID"))
	if errors.Is(err, interview.ErrNotFound) {
		utils.RespondError(w, http.StatusNotFound, "interview not found")
		return
	}
	if err != nil {
		log.Printf("[interview] find failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load interview")
		return
	}

	cards := h.cards(r.Context(), []interview.Interview{item}, current.ID)
	utils.RespondJSON(w, http.StatusOK, detailResponse{Interview: item, Card: cards[0]})
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	fb, err := h.store.FindFeedback(r.Context(), chi.URLParam(r, "interviewID"), current.ID)
	if errors.Is(err, interview.ErrFeedbackNotFound) {
		utils.RespondError(w, http.StatusNotFound, "feedback not found")
		return
	}
	if err != nil {
		log.Printf("[interview] feedback lookup failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load feedback")
		return
	}
	utils.RespondJSON(w, http.StatusOK, fb)
}

func (h *Handler) cards(ctx context.Context, items []interview.Interview, userID string) []interview.Card {
	now := h.now()
	out := make([]interview.Card, 0, len(items))
	for _, item := range items {
		var feedback *interview.Feedback
		fb, err := h.store.FindFeedback(ctx, item.ID, userID)
		switch {
		case err == nil:
			feedback = &fb
		case !errors.Is(err, interview.ErrFeedbackNotFound):
			log.Printf("[interview] feedback lookup interview=%s failed: %v", item.ID, err)
		}
		out = append(out, interview.BuildCard(item, feedback, now))
	}
	return out
}
