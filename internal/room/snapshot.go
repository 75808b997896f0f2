package room

import "github.com/avalonserve/avalond/internal/rules"

// PlayerInfo is the public view of a roster member.
type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar,omitempty"`
	Connected bool   `json:"connected"`
}

// Result is the immutable record of one completed round.
type Result struct {
	Round        int          `json:"round"`
	Winner       rules.Winner `json:"winner"`
	SuccessVotes int          `json:"successVotes"`
	FailVotes    int          `json:"failVotes"`
	TeamRejected bool         `json:"teamRejected,omitempty"`
}

// Snapshot is the sanitized public state broadcast after every committed
// transition. It is a deep copy: receivers never observe partial state, and
// hidden roles appear only once the game is over.
type Snapshot struct {
	Code         string                `json:"code"`
	Phase        Phase                 `json:"phase"`
	LeaderID     string                `json:"leaderId,omitempty"`
	Round        int                   `json:"round"`
	Results      []Result              `json:"results"`
	GoodWins     int                   `json:"goodWins"`
	AssassinWins int                   `json:"assassinWins"`
	Team         []string              `json:"team"`
	TeamVotes    int                   `json:"teamVotes"`
	MissionVotes int                   `json:"missionVotes"`
	Players      []PlayerInfo          `json:"players"`
	MaxPlayers   int                   `json:"maxPlayers"`
	Winner       rules.Winner          `json:"winner,omitempty"`
	Roles        map[string]rules.Role `json:"roles,omitempty"`
}

// MissionResult is the payload broadcast when a round resolves, whether by
// mission votes or by a rejected team.
type MissionResult struct {
	Round        int          `json:"round"`
	Winner       rules.Winner `json:"winner"`
	SuccessVotes int          `json:"successVotes"`
	FailVotes    int          `json:"failVotes"`
	TeamRejected bool         `json:"teamRejected,omitempty"`
}

// RolePayload is the private payload unicast to each player at game start and
// on reconnection.
type RolePayload struct {
	Role rules.Role `json:"role"`
}

// GameOverPayload reveals the full role assignment once the game ends.
type GameOverPayload struct {
	Winner rules.Winner          `json:"winner"`
	Roles  map[string]rules.Role `json:"roles"`
}
