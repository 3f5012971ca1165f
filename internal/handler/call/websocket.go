package call

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/prepx/backend/internal/middleware"
	"github.com/zhouzirui/prepx/backend/internal/model/call"
	callService "github.com/zhouzirui/prepx/backend/internal/service/call"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// WebSocketHandler 通话的双向实时通道：推送更新，接收 start/stop 与 SDK 事件
type WebSocketHandler struct {
	calls    *callService.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(calls *callService.Service) *WebSocketHandler {
	return &WebSocketHandler{
		calls: calls,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type inboundMessage struct {
	Type   string          `json:"type"`
	CallID string          `json:"callId"`
	Data   json.RawMessage `json:"data"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	CallID    string `json:"callId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// wsConn serialises writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	callID := chi.URLParam(r, "callID")
	snap, err := h.calls.Get(r.Context(), callID)
	if err != nil || snap.UserID != current.ID {
		http.Error(w, "call not found", http.StatusNotFound)
		return
	}

	updates, cancelSub, err := h.calls.Subscribe(callID)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	defer cancelSub()

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer raw.Close()
	conn := &wsConn{conn: raw}

	log.Printf("[websocket] new connection for call: %s", callID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	raw.SetReadDeadline(time.Now().Add(readTimeout))
	raw.SetPongHandler(func(string) error {
		raw.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, conn)
	go h.pushUpdates(ctx, cancel, conn, updates)

	if snap, err = h.calls.Get(ctx, callID); err == nil {
		h.send(conn, "connected", callID, snap)
	}

	for {
		var msg inboundMessage
		if err := raw.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		raw.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.CallID != "" && msg.CallID != callID {
			h.sendError(conn, callID, "call mismatch")
			continue
		}
		h.handleMessage(ctx, conn, callID, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *wsConn, callID string, msg *inboundMessage) {
	var (
		snap call.Call
		err  error
	)

	switch msg.Type {
	case "start":
		snap, err = h.calls.Start(ctx, callID)
	case "stop":
		snap, err = h.calls.Stop(ctx, callID)
	case "event":
		var event call.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			h.sendError(conn, callID, "invalid event payload")
			return
		}
		snap, err = h.calls.HandleEvent(ctx, callID, event)
	default:
		h.sendError(conn, callID, "unsupported message type: "+msg.Type)
		return
	}

	if err != nil {
		h.sendError(conn, callID, err.Error())
		return
	}
	h.send(conn, "result", callID, snap)
}

// pushUpdates forwards hub updates until the subscription closes.
func (h *WebSocketHandler) pushUpdates(ctx context.Context, cancel context.CancelFunc, conn *wsConn, updates <-chan call.Update) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case update, open := <-updates:
			if !open {
				conn.conn.Close()
				return
			}
			if err := conn.writeJSON(outgoingMessage{
				Type:      "update",
				CallID:    update.CallID,
				Data:      update,
				Timestamp: update.Timestamp.Unix(),
			}); err != nil {
				log.Printf("[websocket] write update failed: %v", err)
				conn.conn.Close()
				return
			}
		}
	}
}

func (h *WebSocketHandler) send(conn *wsConn, kind, callID string, data any) {
	msg := outgoingMessage{
		Type:      kind,
		CallID:    callID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.writeJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", kind, err)
	}
}

func (h *WebSocketHandler) sendError(conn *wsConn, callID, message string) {
	h.send(conn, "error", callID, map[string]string{"message": message})
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
