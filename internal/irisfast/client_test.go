package irisfast

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type irisStub struct {
	configHits atomic.Int32
	replyHits  atomic.Int32
	failReply  atomic.Bool

	mu      sync.Mutex
	replies []ReplyRequest
	userIDs []string
}

func startIrisStub(t *testing.T) (*irisStub, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	stub := &irisStub{}
	srv := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/config":
			if stub.configHits.Add(1) == 1 {
				ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
				return
			}
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"port":3000,"polling_speed":100,"message_rate":50,"web_server_endpoint":"http://bot"}`)
		case "/reply":
			stub.replyHits.Add(1)
			if stub.failReply.Load() {
				ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
				return
			}
			var req ReplyRequest
			if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
				ctx.SetStatusCode(fasthttp.StatusBadRequest)
				return
			}
			stub.mu.Lock()
			stub.replies = append(stub.replies, req)
			stub.userIDs = append(stub.userIDs, string(ctx.Request.Header.Peek("X-User-Id")))
			stub.mu.Unlock()
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	return stub, "http://" + ln.Addr().String()
}

func TestGetConfigRetriesServerErrors(t *testing.T) {
	stub, url := startIrisStub(t)
	c := NewClient(url, WithTimeout(2*time.Second))
	cfg, err := c.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.Port != 3000 || cfg.WebserverEndpoint != "http://bot" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if got := stub.configHits.Load(); got != 2 {
		t.Fatalf("expected one retry, got %d hits", got)
	}
}

func TestSendMessageCarriesHeadersAndIsNotRetried(t *testing.T) {
	stub, url := startIrisStub(t)
	c := NewClient(url, WithHeaderProvider(func() map[string]string {
		return map[string]string{"X-User-Id": "bot-1", "X-Empty": " "}
	}))
	if err := c.SendMessage(context.Background(), "room-a", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	stub.mu.Lock()
	if len(stub.replies) != 1 || stub.replies[0].Room != "room-a" || stub.replies[0].Type != "text" || stub.userIDs[0] != "bot-1" {
		t.Fatalf("unexpected replies: %+v %v", stub.replies, stub.userIDs)
	}
	stub.mu.Unlock()

	stub.failReply.Store(true)
	if err := c.SendMessage(context.Background(), "room-a", "again"); err == nil || !strings.Contains(err.Error(), "status=503") {
		t.Fatalf("expected a 503 error, got %v", err)
	}
	if got := stub.replyHits.Load(); got != 2 {
		t.Fatalf("reply must not be retried, got %d hits", got)
	}
	if err := c.SendMessage(context.Background(), " ", "x"); err == nil {
		t.Fatalf("empty room must be rejected")
	}
}

func TestAutoEgressFallsBackToHTTP(t *testing.T) {
	stub, url := startIrisStub(t)
	ws := NewWebSocket("ws://127.0.0.1:1/unused", 0, 0)
	eg := NewEgress("auto", false, NewClient(url), ws, nil)
	if err := eg.SendText(context.Background(), "room-b", "fallback"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if got := stub.replyHits.Load(); got != 1 {
		t.Fatalf("expected HTTP delivery, got %d hits", got)
	}
	if !ValidEgressMode("auto") || ValidEgressMode("smtp") {
		t.Fatalf("egress mode validation is wrong")
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	replies := make(chan ReplyRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		sender := "Alice"
		in := Message{Msg: "!대결 주제 5", Room: "room-a", Sender: &sender, JSON: &MessageJSON{UserID: "u-1"}}
		if err := wsjson.Write(r.Context(), c, in); err != nil {
			return
		}
		var out ReplyRequest
		if err := wsjson.Read(r.Context(), c, &out); err != nil {
			return
		}
		replies <- out
		for {
			if _, _, err := c.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ws := NewWebSocket("ws"+strings.TrimPrefix(srv.URL, "http"), 0, 0)
	got := make(chan *Message, 1)
	ws.OnMessage(func(m *Message) { got <- m })
	var states []WebSocketState
	var stateMu sync.Mutex
	ws.OnStateChange(func(s WebSocketState) {
		stateMu.Lock()
		states = append(states, s)
		stateMu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case m := <-got:
		if m.Room != "room-a" || m.JSON == nil || m.JSON.UserID != "u-1" || m.SenderName() != "Alice" {
			t.Fatalf("unexpected message: %+v", m)
		}
	case <-ctx.Done():
		t.Fatalf("no inbound message")
	}

	eg := NewEgress("ws", false, nil, ws, nil)
	if err := eg.SendText(ctx, "room-a", "pong"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	select {
	case r := <-replies:
		if r.Room != "room-a" || r.Data != "pong" {
			t.Fatalf("unexpected reply: %+v", r)
		}
	case <-ctx.Done():
		t.Fatalf("server never saw the reply")
	}

	if err := ws.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := eg.SendText(ctx, "room-a", "late"); err == nil {
		t.Fatalf("send after close must fail")
	}
	stateMu.Lock()
	defer stateMu.Unlock()
	if len(states) < 2 || states[0] != WSStateConnecting || states[1] != WSStateConnected {
		t.Fatalf("unexpected state sequence: %v", states)
	}
}
