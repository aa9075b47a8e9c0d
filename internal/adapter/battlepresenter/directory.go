package battlepresenter

import (
	"strings"
	"sync"
	"time"

	"github.com/park285/vocab-battle-bot/internal/rematch"
)

// codeLen is the length of the short rematch code shown in chat.
const codeLen = 6

const (
	// nameTTL is how long a display name is kept after the player was last seen.
	nameTTL    = 24 * time.Hour
	pruneEvery = 10 * time.Minute
)

type seenName struct {
	name string
	at   time.Time
}

type ticketRef struct {
	id          string
	code        string
	requesterID string
	opponentID  string
	expiresAt   time.Time
}

// Directory remembers display names and open rematch offers so chat replies
// can address players by name and commands may omit the ticket code.
type Directory struct {
	mu        sync.RWMutex
	names     map[string]seenName
	tickets   map[string]ticketRef // code -> ticket
	nextPrune time.Time
	now       func() time.Time
}

func NewDirectory() *Directory {
	return &Directory{names: make(map[string]seenName), tickets: make(map[string]ticketRef), now: time.Now}
}

// RememberName records the latest display name seen for a player. Names of
// players silent for nameTTL are forgotten.
func (d *Directory) RememberName(playerID, name string) {
	playerID, name = strings.TrimSpace(playerID), strings.TrimSpace(name)
	if d == nil || playerID == "" || name == "" {
		return
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[playerID] = seenName{name: name, at: now}
	if now.Before(d.nextPrune) {
		return
	}
	d.nextPrune = now.Add(pruneEvery)
	for id, n := range d.names {
		if now.Sub(n.at) > nameTTL {
			delete(d.names, id)
		}
	}
}

// Name returns the display name for playerID, or the id itself.
func (d *Directory) Name(playerID string) string {
	if d == nil {
		return playerID
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if n, ok := d.names[playerID]; ok {
		return n.name
	}
	return playerID
}

// TicketCode is the short code players type for a ticket.
func TicketCode(ticketID string) string {
	code := strings.ToUpper(strings.ReplaceAll(ticketID, "-", ""))
	if len(code) > codeLen {
		code = code[:codeLen]
	}
	return code
}

func (d *Directory) trackTicket(t *rematch.Ticket) string {
	code := TicketCode(t.ID)
	if d == nil {
		return code
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked()
	d.tickets[code] = ticketRef{
		id:          t.ID,
		code:        code,
		requesterID: t.RequesterID,
		opponentID:  t.OpponentID,
		expiresAt:   t.ExpiresAt,
	}
	return code
}

func (d *Directory) forgetTicket(ticketID string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	delete(d.tickets, TicketCode(ticketID))
	d.mu.Unlock()
}

// forgetPair drops every offer between a and b, in either direction.
func (d *Directory) forgetPair(a, b string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for code, t := range d.tickets {
		if (t.requesterID == a && t.opponentID == b) || (t.requesterID == b && t.opponentID == a) {
			delete(d.tickets, code)
		}
	}
}

// ResolveTicket maps a typed code to a ticket id. With an empty code it picks
// the newest open offer involving playerID. Unknown codes are passed through
// so the broker reports them as not found.
func (d *Directory) ResolveTicket(playerID, code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if d == nil {
		return code, code != ""
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked()
	if code != "" {
		if t, ok := d.tickets[code]; ok {
			return t.id, true
		}
		return code, true
	}
	var best ticketRef
	found := false
	for _, t := range d.tickets {
		if t.requesterID != playerID && t.opponentID != playerID {
			continue
		}
		if !found || t.expiresAt.After(best.expiresAt) {
			best, found = t, true
		}
	}
	return best.id, found
}

func (d *Directory) pruneLocked() {
	now := d.now()
	for code, t := range d.tickets {
		if !now.Before(t.expiresAt) {
			delete(d.tickets, code)
		}
	}
}
