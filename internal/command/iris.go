package command

import (
	"strings"

	"github.com/park285/vocab-battle-bot/internal/domain"
	"github.com/park285/vocab-battle-bot/internal/irisfast"
)

// FromMessage maps an Iris chat line to an Inbound. The KakaoTalk user id is
// preferred over the display name, which players can change.
func FromMessage(msg *irisfast.Message) Inbound {
	if msg == nil {
		return Inbound{}
	}
	name := strings.TrimSpace(msg.SenderName())
	id := ""
	if msg.JSON != nil {
		id = strings.TrimSpace(msg.JSON.UserID)
	}
	if id == "" {
		id = name
	}
	return Inbound{PlayerID: id, Name: name, Room: domain.OutboundHandle(msg.Room), Text: msg.Msg}
}
