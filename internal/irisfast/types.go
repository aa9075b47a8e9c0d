package irisfast

// Message is one chat line pushed by Iris over the WebSocket.
type Message struct {
	Msg    string       `json:"msg"`
	Room   string       `json:"room"`
	Sender *string      `json:"sender,omitempty"`
	JSON   *MessageJSON `json:"json,omitempty"`
}

// MessageJSON carries the raw KakaoTalk fields Iris forwards with a message.
type MessageJSON struct {
	UserID  string `json:"user_id"`
	ChatID  string `json:"chat_id,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// SenderName is the display name, or "" when Iris did not send one.
func (m *Message) SenderName() string {
	if m == nil || m.Sender == nil {
		return ""
	}
	return *m.Sender
}

type ReplyRequest struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Data string `json:"data"`
}

// Config is the subset of Iris /config the bot reads.
type Config struct {
	Port              int    `json:"port"`
	PollingSpeed      int    `json:"polling_speed"`
	MessageRate       int    `json:"message_rate"`
	WebserverEndpoint string `json:"web_server_endpoint"`
}

type WebSocketState int

const (
	WSStateDisconnected WebSocketState = iota
	WSStateConnecting
	WSStateConnected
	WSStateReconnecting
	WSStateFailed
)

func (s WebSocketState) String() string {
	switch s {
	case WSStateDisconnected:
		return "disconnected"
	case WSStateConnecting:
		return "connecting"
	case WSStateConnected:
		return "connected"
	case WSStateReconnecting:
		return "reconnecting"
	case WSStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
