package irisfast

import "context"

type MessageCallback func(message *Message)

type StateCallback func(state WebSocketState)

// WSClient is the push-channel surface the bot process depends on.
type WSClient interface {
	Connect(ctx context.Context) error
	State() WebSocketState
	WriteJSON(ctx context.Context, v any) error
	OnMessage(cb MessageCallback) int
	RemoveMessageCallback(id int)
	OnStateChange(cb StateCallback) int
	RemoveStateCallback(id int)
	Close(ctx context.Context) error
}
