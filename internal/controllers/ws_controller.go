package controllers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/et1613/chitchatproject-sub001/internal/models"
	"github.com/et1613/chitchatproject-sub001/internal/registry"
	"github.com/et1613/chitchatproject-sub001/internal/services"
	"github.com/et1613/chitchatproject-sub001/internal/utils"
)

const (
	wsReadLimit     = 1 << 20 // 1MB
	wsReadDeadline  = 60 * time.Second
	wsWriteDeadline = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS handled at HTTP level; allow WS here
		return true
	},
}

// wsConn adapts a gorilla websocket connection to the registry's opaque
// send-capable handle. Writes are serialized and bounded by a deadline so a
// stalled peer surfaces as an error instead of a hang.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

type WSController struct {
	tokenService services.TokenService
	registry     *registry.Registry
}

func NewWSController(tokenService services.TokenService, reg *registry.Registry) *WSController {
	return &WSController{tokenService: tokenService, registry: reg}
}

// Connect authenticates via ?token=<session token>, upgrades the request
// and parks the connection in the registry until the transport closes.
func (c *WSController) Connect(w http.ResponseWriter, r *http.Request) {
	tokenStr := strings.TrimSpace(r.URL.Query().Get("token"))
	if tokenStr == "" {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Unauthorized", nil)
		return
	}

	originIP := utils.ClientIP(r)
	token, ok, err := c.tokenService.Authenticate(r.Context(), tokenStr, models.TokenTypeSession, originIP, r.UserAgent())
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Authentication unavailable", nil, err)
		return
	}
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Unauthorized", nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Logger.WithError(err).Error("websocket upgrade failed")
		return
	}

	handle := &wsConn{conn: conn}
	if !c.registry.AddSession(token.SubjectID, handle, originIP) {
		// a handle registers at most once
		_ = conn.Close()
		return
	}
	utils.Logger.Debugf("subject %s connected from %s", token.SubjectID, originIP)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		c.registry.Touch(handle)
		return conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	})

	// read loop: every inbound frame is activity. The registry never sees
	// frame contents.
	go func() {
		defer func() {
			c.registry.RemoveSessionByHandle(handle)
			_ = conn.Close()
			utils.Logger.Debugf("subject %s disconnected", token.SubjectID)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			c.registry.Touch(handle)
			_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		}
	}()
}
