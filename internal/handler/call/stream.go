package call

import (
	"log"
	"net/http"
	"time"

	"github.com/zhouzirui/prepx/backend/pkg/utils"
)

const sseHeartbeat = 15 * time.Second

// handleStream 以 SSE 推送通话状态、转写与跳转事件
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.ownedCall(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates, cancel, err := h.calls.Subscribe(snap.ID)
	if err != nil {
		respondCallError(w, err)
		return
	}
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	log.Printf("[sse] opening call stream call=%s", snap.ID)

	// snapshot is taken after subscribing so no update falls in between
	current, err := h.calls.Get(ctx, snap.ID)
	if err != nil {
		return
	}
	if err := utils.SendSSEEvent(w, flusher, "snapshot", current); err != nil {
		return
	}

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[sse] closing call stream call=%s", snap.ID)
			return
		case update, open := <-updates:
			if !open {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, update.Kind, update); err != nil {
				log.Printf("[sse] write failed call=%s: %v", snap.ID, err)
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}
