package room

import (
	"time"

	"github.com/avalonserve/avalond/internal/rules"
)

// Sender delivers one named event to a single connected client. Implementations
// must not block: the websocket client buffers outbound messages and drops the
// connection if the buffer fills.
type Sender interface {
	Send(event string, payload any) error
}

// Event names pushed through Senders. The transport wraps these in its wire
// envelope; the engine only knows the names and payload shapes.
const (
	EventState         = "state"
	EventYourRole      = "yourRole"
	EventTeamVoteStart = "teamVoteStart"
	EventMissionResult = "missionResult"
	EventGameOver      = "gameOver"
	EventToast         = "toast"
)

// Caller identifies the origin of an action: a durable player identity plus
// the connection generation it was issued under. Actions from a superseded
// generation are rejected, which is how a reconnect race resolves
// deterministically in favour of the newest connection.
type Caller struct {
	ID  string
	Gen uint64
}

// Player is one roster member. The durable identity survives reconnects; the
// sender is nil whenever the player is disconnected. Game-session data (role,
// votes, team membership) is owned by the Room and never leaves with the
// connection.
type Player struct {
	ID     string
	Name   string
	Avatar string

	role rules.Role

	sender         Sender
	gen            uint64
	disconnectedAt time.Time
}

// Connected reports whether the player currently has a live connection.
func (p *Player) Connected() bool {
	return p.sender != nil
}

// send delivers an event to the player if connected. Delivery failures are
// the transport's problem; the engine treats them as a disconnect-in-progress.
func (p *Player) send(event string, payload any) {
	if p.sender == nil {
		return
	}
	_ = p.sender.Send(event, payload)
}
