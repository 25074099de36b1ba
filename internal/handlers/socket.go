package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/stagecast/distributor/internal/middleware"
	"github.com/stagecast/distributor/internal/models"
	"github.com/stagecast/distributor/internal/realtime"
	"github.com/stagecast/distributor/internal/services"
	"github.com/stagecast/distributor/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Token auth happens before the upgrade; origins are not restricted.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is what clients send: an intent name plus its payload.
type clientFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// errorEvent is pushed back on a failed intent.
type errorEvent struct {
	Event string `json:"event"`
	Error string `json:"error"`
}

// SocketHandler upgrades authenticated connections, registers a device
// for each, and translates client intents into distributor calls. All
// state changes flow back through the hub as events, including to the
// connection that caused them.
type SocketHandler struct {
	distributor *services.Distributor
	hub         *realtime.Hub
}

func NewSocketHandler(d *services.Distributor, hub *realtime.Hub) *SocketHandler {
	return &SocketHandler{distributor: d, hub: hub}
}

// Serve handles GET /ws. The auth middleware has already validated the
// token (passed as a query parameter for websocket clients). An optional
// routerId query parameter turns the connection into a router link
// instead of a user device.
func (h *SocketHandler) Serve(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	if routerID := c.Query("routerId"); routerID != "" {
		h.serveRouter(conn, routerID)
		return
	}

	device, err := h.registerDevice(userID, c.Query("deviceUuid"))
	if err != nil {
		logger.Error().Err(err).Str("user", userID).Msg("device registration failed")
		conn.Close()
		return
	}

	client := &realtime.Client{
		UserID:   userID,
		DeviceID: device.ID,
		Send:     make(chan []byte, 256),
		Conn:     conn,
	}
	h.hub.Register(client)

	go h.writePump(client)
	go h.readPump(client)

	h.distributor.SendToDevice(device.ID, services.EventReady, device)
}

// registerDevice finds the user's device by hardware uuid or creates a
// fresh one, and marks it online.
func (h *SocketHandler) registerDevice(userID, deviceUUID string) (*models.Device, error) {
	if deviceUUID != "" {
		var device models.Device
		err := h.distributor.DB().
			Where("user_id = ? AND uuid = ?", userID, deviceUUID).
			First(&device).Error
		if err == nil {
			if err := h.distributor.SetDeviceOnline(device.ID, true); err != nil {
				return nil, err
			}
			device.Online = true
			return &device, nil
		}
	}

	req := &services.CreateDeviceRequest{
		Type:         "web",
		CanAudio:     true,
		CanVideo:     true,
		ReceiveAudio: true,
		ReceiveVideo: true,
		Online:       true,
	}
	if deviceUUID != "" {
		req.UUID = &deviceUUID
	}
	return h.distributor.CreateDevice(userID, req)
}

func (h *SocketHandler) serveRouter(conn *websocket.Conn, routerID string) {
	client := &realtime.Client{
		RouterID: routerID,
		Send:     make(chan []byte, 256),
		Conn:     conn,
	}
	h.hub.Register(client)
	go h.writePump(client)
	go h.readPump(client)
}

func (h *SocketHandler) readPump(client *realtime.Client) {
	defer func() {
		h.hub.Unregister(client)
		client.Conn.Close()
		if client.DeviceID != "" {
			if err := h.distributor.SetDeviceOnline(client.DeviceID, false); err != nil {
				logger.Warn().Err(err).Str("device", client.DeviceID).Msg("failed to mark device offline")
			}
		}
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Str("user", client.UserID).Msg("websocket closed unexpectedly")
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.pushError(client, "", "malformed frame")
			continue
		}
		if err := h.dispatch(client, &frame); err != nil {
			h.pushError(client, frame.Event, err.Error())
		}
	}
}

func (h *SocketHandler) writePump(client *realtime.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *SocketHandler) pushError(client *realtime.Client, event, msg string) {
	data, err := json.Marshal(errorEvent{Event: event, Error: msg})
	if err != nil {
		return
	}
	h.hub.Push(client, data)
}
