package call

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/prepx/backend/internal/middleware"
	"github.com/zhouzirui/prepx/backend/internal/model/call"
	"github.com/zhouzirui/prepx/backend/internal/model/interview"
	callService "github.com/zhouzirui/prepx/backend/internal/service/call"
	"github.com/zhouzirui/prepx/backend/pkg/utils"
)

// Handler 通话的REST、WebSocket与SSE入口。路由需要上游的 RequireUser。
type Handler struct {
	calls      *callService.Service
	interviews interview.Store
	ws         *WebSocketHandler
}

// New 创建通话处理器。interviews 为 nil 时不校验 interviewId。
func New(calls *callService.Service, interviews interview.Store) *Handler {
	return &Handler{
		calls:      calls,
		interviews: interviews,
		ws:         NewWebSocketHandler(calls),
	}
}

// RegisterRoutes 注册通话路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/calls", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Route("/{callID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Get("/transcript", h.handleTranscript)
			r.Post("/start", h.handleStart)
			r.Post("/stop", h.handleStop)
			r.Post("/events", h.handleEvent)
			r.Get("/ws", h.ws.handleWebSocket)
			r.Get("/stream", h.handleStream)
		})
	})
}

type createRequest struct {
	InterviewID string `json:"interviewId"`
	Type        string `json:"type"`
}

type transcriptResponse struct {
	CallID   string       `json:"callId"`
	Messages []call.Entry `json:"messages"`
	Latest   string       `json:"latestMessage,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createRequest
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(w, r, &req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	req.InterviewID = strings.TrimSpace(req.InterviewID)
	if req.InterviewID != "" && h.interviews != nil {
		if _, err := h.interviews.FindByID(r.Context(), req.InterviewID); err != nil {
			if errors.Is(err, interview.ErrNotFound) {
				utils.RespondError(w, http.StatusNotFound, "interview not found")
				return
			}
			log.Printf("[call] interview lookup failed: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "failed to load interview")
			return
		}
	}

	created, err := h.calls.Create(r.Context(), callService.CreateParams{
		UserID:      current.ID,
		UserName:    current.Name,
		InterviewID: req.InterviewID,
		Type:        strings.TrimSpace(req.Type),
	})
	if err != nil {
		respondCallError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.calls.List(r.Context(), current.ID))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.ownedCall(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.ownedCall(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, transcriptResponse{
		CallID:   snap.ID,
		Messages: snap.Transcript,
		Latest:   snap.Latest,
	})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.ownedCall(w, r)
	if !ok {
		return
	}
	started, err := h.calls.Start(r.Context(), snap.ID)
	if err != nil {
		respondCallError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, started)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.ownedCall(w, r)
	if !ok {
		return
	}
	stopped, err := h.calls.Stop(r.Context(), snap.ID)
	if err != nil {
		respondCallError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, stopped)
}

// handleEvent 接收浏览器 SDK 转发的事件
func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.ownedCall(w, r)
	if !ok {
		return
	}

	var event call.Event
	if err := utils.DecodeJSON(w, r, &event); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.calls.HandleEvent(r.Context(), snap.ID, event)
	if err != nil {
		respondCallError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, updated)
}

// ownedCall loads the call named in the URL and hides calls of other users.
func (h *Handler) ownedCall(w http.ResponseWriter, r *http.Request) (call.Call, bool) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return call.Call{}, false
	}

	snap, err := h.calls.Get(r.Context(), chi.URLParam(r, "callID"))
	if err == nil && snap.UserID != current.ID {
		err = callService.ErrCallNotFound
	}
	if err != nil {
		respondCallError(w, err)
		return call.Call{}, false
	}
	return snap, true
}

func respondCallError(w http.ResponseWriter, err error) {
	utils.RespondError(w, statusForError(err), err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, callService.ErrCallNotFound):
		return http.StatusNotFound
	case errors.Is(err, callService.ErrUserRequired),
		errors.Is(err, callService.ErrUnsupportedEvent),
		errors.Is(err, callService.ErrUnknownRole),
		errors.Is(err, callService.ErrEmptySegment):
		return http.StatusBadRequest
	case errors.Is(err, callService.ErrInvalidTransition),
		errors.Is(err, callService.ErrCallNotLive):
		return http.StatusConflict
	case errors.Is(err, callService.ErrSubscriberLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, callService.ErrVendorUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, callService.ErrVendorFailed):
		return http.StatusBadGateway
	default:
		log.Printf("[call] unexpected error: %v", err)
		return http.StatusInternalServerError
	}
}
