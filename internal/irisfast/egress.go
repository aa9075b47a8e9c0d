package irisfast

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Egress sends text replies over HTTP or WebSocket.
type Egress interface {
	SendText(ctx context.Context, room, message string) error
}

type transportMode string

const (
	transportHTTP transportMode = "http"
	transportWS   transportMode = "ws"
	transportAuto transportMode = "auto"
)

// ValidEgressMode reports whether mode names a known transport.
func ValidEgressMode(mode string) bool {
	switch transportMode(mode) {
	case transportHTTP, transportWS, transportAuto:
		return true
	default:
		return false
	}
}

// NewEgress creates an Egress based on mode. When mode is auto, WS is preferred when connected;
// on WS failure, it falls back to HTTP once.
func NewEgress(mode string, dryrun bool, c *Client, ws *WebSocket, logger *zap.Logger) Egress {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch transportMode(mode) {
	case transportWS:
		return &wsEgress{ws: ws, dryrun: dryrun, logger: logger}
	case transportAuto:
		return &autoEgress{ws: &wsEgress{ws: ws, dryrun: dryrun, logger: logger}, http: &httpEgress{c: c}, logger: logger}
	default:
		return &httpEgress{c: c}
	}
}

// httpEgress delegates to Client.
type httpEgress struct{ c *Client }

func (h *httpEgress) SendText(ctx context.Context, room, message string) error {
	if h == nil || h.c == nil {
		return errors.New("http egress not available")
	}
	return h.c.SendMessage(ctx, room, message)
}

// wsEgress writes ReplyRequest frames over WebSocket.
type wsEgress struct {
	ws     *WebSocket
	dryrun bool
	logger *zap.Logger
}

func (w *wsEgress) connected() bool {
	return w != nil && w.ws != nil && w.ws.State() == WSStateConnected
}

func (w *wsEgress) SendText(ctx context.Context, room, message string) error {
	if w == nil || w.ws == nil {
		return errors.New("ws egress not available")
	}
	if w.dryrun {
		w.logger.Info("ws_egress_dryrun", zap.String("type", "text"), zap.String("room", room))
		return nil
	}
	return w.ws.WriteJSON(ctx, &ReplyRequest{Type: "text", Room: room, Data: message})
}

// autoEgress prefers WS if available, with single fallback to HTTP.
type autoEgress struct {
	ws     *wsEgress
	http   *httpEgress
	logger *zap.Logger
}

func (a *autoEgress) SendText(ctx context.Context, room, message string) error {
	if a.ws.connected() {
		err := a.ws.SendText(ctx, room, message)
		if err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", "text"), zap.String("room", room), zap.Error(err))
	}
	return a.http.SendText(ctx, room, message)
}
