package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/vocab-battle-bot/internal/config"
	"github.com/park285/vocab-battle-bot/internal/irisfast"
)

func main() {
	config.LoadDotenv()
	baseURL := os.Getenv("IRIS_BASE_URL")
	wsURL := os.Getenv("IRIS_WS_URL")

	if baseURL == "" {
		log.Fatal("IRIS_BASE_URL is required")
	}

	headers := config.IrisHeaders(os.Getenv("X_USER_ID"), os.Getenv("X_USER_EMAIL"), os.Getenv("X_SESSION_ID"))

	client := irisfast.NewClient(baseURL,
		irisfast.WithHeaderProvider(headers),
		irisfast.WithTimeout(8*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg, err := client.GetConfig(ctx)
	if err != nil {
		log.Printf("/config error: %v", err)
	} else {
		log.Printf("/config ok: port=%d polling=%d rate=%d endpoint=%s", cfg.Port, cfg.PollingSpeed, cfg.MessageRate, cfg.WebserverEndpoint)
	}

	if wsURL == "" {
		log.Println("IRIS_WS_URL not set; skipping WS check")
		return
	}

	ws := irisfast.NewWebSocket(wsURL, 0, time.Second)
	ws.SetHeaderProvider(headers)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		log.Printf("WS state: %s", state)
	})
	ws.OnMessage(func(msg *irisfast.Message) {
		from := msg.SenderName()
		if from == "" {
			from = "?"
		}
		uid := ""
		if msg.JSON != nil {
			uid = msg.JSON.UserID
		}
		fmt.Printf("WS msg room=%s from=%s user=%s text=%q\n", msg.Room, from, uid, msg.Msg)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}

	// observe for a short window
	<-time.After(10 * time.Second)

	_ = ws.Close(context.Background())
}
