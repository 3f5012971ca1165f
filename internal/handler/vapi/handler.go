package vapi

import (
	"crypto/subtle"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	callService "github.com/zhouzirui/prepx/backend/internal/service/call"
	vapiService "github.com/zhouzirui/prepx/backend/internal/service/vapi"
	"github.com/zhouzirui/prepx/backend/pkg/utils"
)

const (
	secretHeader    = "X-Vapi-Secret"
	maxWebhookBytes = 1 << 20
)

// Handler 接收 Vapi 服务端消息并转换为通话事件
type Handler struct {
	calls  *callService.Service
	secret string
}

// New 创建 webhook 处理器。secret 为空时不校验请求头。
func New(calls *callService.Service, secret string) *Handler {
	return &Handler{calls: calls, secret: secret}
}

// RegisterRoutes 注册 webhook 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/vapi/webhook", h.handleWebhook)
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			utils.RespondError(w, http.StatusUnauthorized, "invalid webhook secret")
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	msg, err := vapiService.ParseServerMessage(body)
	if errors.Is(err, vapiService.ErrIgnoredMessage) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.calls.HandleVendorEvent(r.Context(), msg.CallID, msg.VendorCallID, msg.Event)
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "applied", "callStatus": string(snap.Status)})
	case errors.Is(err, callService.ErrCallNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, callService.ErrInvalidTransition), errors.Is(err, callService.ErrCallNotLive):
		// 浏览器与服务端会重复报告同一事件，重复项直接确认
		log.Printf("[vapi] duplicate or late %s for call=%s vendorCall=%s: %v", msg.Event.Type, msg.CallID, msg.VendorCallID, err)
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "stale"})
	default:
		log.Printf("[vapi] webhook event %s failed call=%s vendorCall=%s: %v", msg.Event.Type, msg.CallID, msg.VendorCallID, err)
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	}
}
