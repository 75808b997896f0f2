// Package room implements the authoritative state machine for one game
// session. All mutations of a Room are serialized behind its mutex: an action
// either commits a complete transition or is rejected with state untouched.
// Nothing in here suspends mid-transition; quorum-triggered phase changes
// happen synchronously inside the vote call that reached the quorum.
package room

import (
	"sync"
	"time"

	rand "math/rand/v2"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avalonserve/avalond/internal/rules"
)

// Phase is the room's current position in the game state machine.
type Phase string

const (
	PhaseLobby         Phase = "lobby"
	PhaseTeamSelection Phase = "teamSelection"
	PhaseTeamVote      Phase = "teamVote"
	PhaseMissionVote   Phase = "missionVote"
	PhaseGameOver      Phase = "gameOver"
)

func (p Phase) String() string { return string(p) }

// Config carries the per-room rule knobs. Zero values are filled in by
// withDefaults.
type Config struct {
	// MaxPlayers caps the roster, clamped to [rules.MinPlayers, rules.MaxPlayers].
	MaxPlayers int
	// AssassinCount requested at creation; Start may override it.
	AssassinCount int
	// FailThreshold is the number of fail votes that fails a mission.
	FailThreshold int
	// StalledWinner takes the game when five rounds pass without a majority.
	StalledWinner rules.Winner
}

func (c Config) withDefaults() Config {
	if c.MaxPlayers < rules.MinPlayers || c.MaxPlayers > rules.MaxPlayers {
		c.MaxPlayers = rules.MaxPlayers
	}
	if c.AssassinCount < 1 {
		c.AssassinCount = 1
	}
	if c.FailThreshold < 1 {
		c.FailThreshold = rules.DefaultFailThreshold
	}
	if c.StalledWinner == "" {
		c.StalledWinner = rules.WinnerEvil
	}
	return c
}

// Room is one isolated game session. Join order is preserved in players and
// drives leader rotation.
type Room struct {
	mu     sync.Mutex
	code   string
	cfg    Config
	logger zerolog.Logger
	rng    *rand.Rand
	clock  quartz.Clock

	phase        Phase
	players      []*Player
	leaderIdx    int
	round        int
	draft        []string
	team         []string
	teamVotes    map[string]bool
	missionVotes map[string]bool
	results      []Result
	goodWins     int
	assassinWins int
	winner       rules.Winner

	lastActivity time.Time
}

// New creates a room in the lobby phase. The rng must be dedicated to this
// room; the clock is injectable for tests.
func New(code string, cfg Config, rng *rand.Rand, clock quartz.Clock, logger zerolog.Logger) *Room {
	if clock == nil {
		clock = quartz.NewReal()
	}
	r := &Room{
		code:   code,
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "room").Str("code", code).Logger(),
		rng:    rng,
		clock:  clock,
		phase:  PhaseLobby,
		round:  1,
	}
	r.lastActivity = clock.Now()
	return r
}

// Code returns the room's shareable code.
func (r *Room) Code() string { return r.code }

// Phase returns the current phase.
func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// LastActivity returns the time of the most recent accepted action or
// connection change. Used by the registry's idle janitor.
func (r *Room) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// RosterSize returns the number of roster members, connected or not.
func (r *Room) RosterSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// ConnectedCount returns the number of roster members with a live connection.
func (r *Room) ConnectedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.players {
		if p.Connected() {
			n++
		}
	}
	return n
}

// Join adds a new player in the lobby, or reattaches an existing roster
// member's connection when identity matches. It returns the durable identity
// and the connection generation the caller must present with future actions.
func (r *Room) Join(identity, name, avatar string, sender Sender) (id string, gen uint64, reconnected bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if identity != "" {
		if p := r.findLocked(identity); p != nil {
			// Last attachment wins; the superseded connection's generation
			// becomes stale.
			p.gen++
			p.sender = sender
			p.disconnectedAt = time.Time{}
			r.touchLocked()
			r.logger.Info().Str("player", p.ID).Str("name", p.Name).Msg("player reconnected")

			// Replay current state and the caller's own role to this
			// connection only.
			p.send(EventState, r.snapshotLocked())
			if r.phase != PhaseLobby && p.role != "" {
				p.send(EventYourRole, RolePayload{Role: p.role})
			}
			r.broadcastStateLocked()
			return p.ID, p.gen, true, nil
		}
	}

	if r.phase != PhaseLobby {
		return "", 0, false, ErrAlreadyStarted
	}
	if len(r.players) >= r.cfg.MaxPlayers {
		return "", 0, false, ErrRoomFull
	}

	p := &Player{
		ID:     uuid.NewString(),
		Name:   name,
		Avatar: avatar,
		sender: sender,
		gen:    1,
	}
	r.players = append(r.players, p)
	r.touchLocked()
	r.logger.Info().Str("player", p.ID).Str("name", name).Int("roster", len(r.players)).Msg("player joined")
	r.broadcastStateLocked()
	return p.ID, p.gen, false, nil
}

// Detach marks the caller's connection as gone. The player stays on the
// roster with role, team membership and recorded votes intact. A detach from
// a superseded generation is ignored so a reconnect racing a slow close
// keeps the newer connection.
func (r *Room) Detach(c Caller) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findLocked(c.ID)
	if p == nil || p.gen != c.Gen {
		return
	}
	p.sender = nil
	p.disconnectedAt = r.clock.Now()
	r.touchLocked()
	r.logger.Info().Str("player", p.ID).Str("name", p.Name).Msg("player disconnected")
	r.broadcastStateLocked()
}

// Leave removes the caller from the lobby roster, or detaches the connection
// when a game is in progress (an in-progress round never loses a roster
// member). It returns the remaining roster size.
func (r *Room) Leave(c Caller) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findLocked(c.ID)
	if p == nil {
		return len(r.players), ErrUnknownVoter
	}
	if p.gen != c.Gen {
		return len(r.players), ErrStaleConnection
	}

	if r.phase != PhaseLobby {
		p.sender = nil
		p.disconnectedAt = r.clock.Now()
		r.touchLocked()
		r.broadcastStateLocked()
		return len(r.players), nil
	}

	for i, q := range r.players {
		if q.ID == p.ID {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}
	r.touchLocked()
	r.logger.Info().Str("player", p.ID).Str("name", p.Name).Int("roster", len(r.players)).Msg("player left")
	r.broadcastStateLocked()
	return len(r.players), nil
}

// Start assigns roles and moves the room into team selection. The initial
// leader is the first joiner; leadership then rotates in join order.
func (r *Room) Start(c Caller, assassinCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.callerLocked(c); err != nil {
		return err
	}
	if r.phase != PhaseLobby {
		return ErrWrongPhase
	}
	n := len(r.players)
	if n < rules.MinPlayers {
		return ErrNotEnoughPlayers
	}
	if assassinCount < 1 || assassinCount >= n {
		return ErrInvalidAssassinCount
	}

	roles, err := rules.AssignRoles(n, assassinCount, r.rng)
	if err != nil {
		return err
	}

	r.cfg.AssassinCount = assassinCount
	r.leaderIdx = 0
	r.round = 1
	r.results = nil
	r.goodWins = 0
	r.assassinWins = 0
	r.winner = ""
	r.draft = nil
	r.team = nil
	r.teamVotes = nil
	r.missionVotes = nil
	r.phase = PhaseTeamSelection
	r.touchLocked()

	for i, p := range r.players {
		p.role = roles[i]
	}

	r.logger.Info().
		Int("players", n).
		Int("assassins", assassinCount).
		Str("leader", r.players[r.leaderIdx].ID).
		Msg("game started")

	// Roles go out as unicasts only; they are never part of a broadcast
	// until the game is over.
	for _, p := range r.players {
		p.send(EventYourRole, RolePayload{Role: p.role})
	}
	r.broadcastStateLocked()
	return nil
}

// DraftTeam replaces the leader's proposed team draft. The draft is clamped
// to roster membership and not committed until ConfirmTeam.
func (r *Room) DraftTeam(c Caller, members []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.callerLocked(c); err != nil {
		return err
	}
	if r.phase != PhaseTeamSelection {
		return ErrWrongPhase
	}
	if c.ID != r.players[r.leaderIdx].ID {
		return ErrNotLeader
	}

	seen := make(map[string]bool, len(members))
	draft := make([]string, 0, len(members))
	for _, id := range members {
		if seen[id] || r.findLocked(id) == nil {
			continue
		}
		seen[id] = true
		draft = append(draft, id)
	}
	r.draft = draft
	r.touchLocked()
	r.broadcastStateLocked()
	return nil
}

// ConfirmTeam commits the current draft as the round's team and opens the
// roster-wide team vote.
func (r *Room) ConfirmTeam(c Caller) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.callerLocked(c); err != nil {
		return err
	}
	if r.phase != PhaseTeamSelection {
		return ErrWrongPhase
	}
	if c.ID != r.players[r.leaderIdx].ID {
		return ErrNotLeader
	}

	want, err := rules.TeamSize(len(r.players), r.round)
	if err != nil {
		return err
	}
	if len(r.draft) != want {
		return ErrWrongTeamSize
	}

	r.team = append([]string(nil), r.draft...)
	r.teamVotes = make(map[string]bool, len(r.players))
	r.missionVotes = nil
	r.phase = PhaseTeamVote
	r.touchLocked()

	r.logger.Info().Int("round", r.round).Strs("team", r.team).Msg("team committed, vote open")

	r.broadcastLocked(EventTeamVoteStart, struct{}{})
	r.broadcastStateLocked()
	return nil
}

// VoteTeam records one roster member's approve/reject vote. When every
// roster member has voted the outcome resolves synchronously: approval opens
// the mission vote, rejection resolves the round for Evil (house rule).
func (r *Room) VoteTeam(c Caller, approve bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.callerLocked(c)
	if err != nil {
		return err
	}
	if r.phase != PhaseTeamVote {
		return ErrWrongPhase
	}
	if _, voted := r.teamVotes[p.ID]; voted {
		return ErrDuplicateVote
	}

	r.teamVotes[p.ID] = approve
	r.touchLocked()

	if len(r.teamVotes) < len(r.players) {
		r.broadcastStateLocked()
		return nil
	}

	approves, rejects := 0, 0
	for _, v := range r.teamVotes {
		if v {
			approves++
		} else {
			rejects++
		}
	}

	if rules.ResolveTeamVote(approves, rejects) {
		r.missionVotes = make(map[string]bool, len(r.team))
		r.phase = PhaseMissionVote
		r.logger.Info().Int("round", r.round).Int("approve", approves).Int("reject", rejects).Msg("team approved")
		r.broadcastStateLocked()
		return nil
	}

	// Rejected team: the round resolves immediately for Evil.
	r.logger.Info().Int("round", r.round).Int("approve", approves).Int("reject", rejects).Msg("team rejected")
	r.resolveRoundLocked(Result{
		Round:        r.round,
		Winner:       rules.WinnerEvil,
		TeamRejected: true,
	})
	return nil
}

// VoteMission records one team member's success/fail vote. When the whole
// team has voted the round resolves synchronously.
func (r *Room) VoteMission(c Caller, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.callerLocked(c)
	if err != nil {
		return err
	}
	if r.phase != PhaseMissionVote {
		return ErrWrongPhase
	}
	if !r.onTeamLocked(p.ID) {
		return ErrNotOnTeam
	}
	if _, voted := r.missionVotes[p.ID]; voted {
		return ErrDuplicateVote
	}

	r.missionVotes[p.ID] = success
	r.touchLocked()

	if len(r.missionVotes) < len(r.team) {
		r.broadcastStateLocked()
		return nil
	}

	successes, fails := 0, 0
	for _, v := range r.missionVotes {
		if v {
			successes++
		} else {
			fails++
		}
	}

	winner := rules.ResolveMission(fails, r.cfg.FailThreshold)
	r.logger.Info().
		Int("round", r.round).
		Int("success", successes).
		Int("fail", fails).
		Str("winner", string(winner)).
		Msg("mission resolved")
	r.resolveRoundLocked(Result{
		Round:        r.round,
		Winner:       winner,
		SuccessVotes: successes,
		FailVotes:    fails,
	})
	return nil
}

// Reset re-initializes a finished game as a fresh lobby under the same code,
// keeping the roster and its connections.
func (r *Room) Reset(c Caller) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.callerLocked(c); err != nil {
		return err
	}
	if r.phase != PhaseGameOver {
		return ErrWrongPhase
	}

	r.phase = PhaseLobby
	r.round = 1
	r.leaderIdx = 0
	r.results = nil
	r.goodWins = 0
	r.assassinWins = 0
	r.winner = ""
	r.draft = nil
	r.team = nil
	r.teamVotes = nil
	r.missionVotes = nil
	for _, p := range r.players {
		p.role = ""
	}
	r.touchLocked()
	r.logger.Info().Msg("room reset to lobby")
	r.broadcastStateLocked()
	return nil
}

// Abandoned reports whether the room has no roster, or every roster member
// has been disconnected since before the cutoff. The registry's janitor uses
// this to reclaim rooms whose players are never coming back.
func (r *Room) Abandoned(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) == 0 {
		return true
	}
	for _, p := range r.players {
		if p.Connected() {
			return false
		}
		if p.disconnectedAt.After(cutoff) {
			return false
		}
	}
	return true
}

// Snapshot returns the sanitized public state.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// resolveRoundLocked commits a round result: appends the record, bumps the
// winner's counter, rotates the leader, advances the round and either opens
// the next team selection or ends the game.
func (r *Room) resolveRoundLocked(res Result) {
	r.results = append(r.results, res)
	if res.Winner == rules.WinnerEvil {
		r.assassinWins++
	} else {
		r.goodWins++
	}

	r.broadcastLocked(EventMissionResult, MissionResult(res))

	r.leaderIdx = (r.leaderIdx + 1) % len(r.players)
	r.draft = nil
	r.team = nil
	r.teamVotes = nil
	r.missionVotes = nil
	r.round++

	if winner, over := rules.GameWinner(r.goodWins, r.assassinWins, r.round, r.cfg.StalledWinner); over {
		r.phase = PhaseGameOver
		r.winner = winner
		r.logger.Info().
			Str("winner", string(winner)).
			Int("good_wins", r.goodWins).
			Int("assassin_wins", r.assassinWins).
			Msg("game over")
		r.broadcastLocked(EventGameOver, GameOverPayload{Winner: winner, Roles: r.rolesLocked()})
	} else {
		r.phase = PhaseTeamSelection
	}
	r.broadcastStateLocked()
}

func (r *Room) snapshotLocked() Snapshot {
	players := make([]PlayerInfo, len(r.players))
	for i, p := range r.players {
		players[i] = PlayerInfo{
			ID:        p.ID,
			Name:      p.Name,
			Avatar:    p.Avatar,
			Connected: p.Connected(),
		}
	}

	// During team selection the public team field shows the leader's draft
	// so everyone can watch the proposal take shape.
	team := r.team
	if r.phase == PhaseTeamSelection {
		team = r.draft
	}

	snap := Snapshot{
		Code:         r.code,
		Phase:        r.phase,
		Round:        r.round,
		Results:      append([]Result(nil), r.results...),
		GoodWins:     r.goodWins,
		AssassinWins: r.assassinWins,
		Team:         append([]string(nil), team...),
		TeamVotes:    len(r.teamVotes),
		MissionVotes: len(r.missionVotes),
		Players:      players,
		MaxPlayers:   r.cfg.MaxPlayers,
	}
	if snap.Team == nil {
		snap.Team = []string{}
	}
	if snap.Results == nil {
		snap.Results = []Result{}
	}
	if r.phase != PhaseLobby && len(r.players) > 0 {
		snap.LeaderID = r.players[r.leaderIdx].ID
	}
	if r.phase == PhaseGameOver {
		snap.Winner = r.winner
		snap.Roles = r.rolesLocked()
	}
	return snap
}

func (r *Room) rolesLocked() map[string]rules.Role {
	roles := make(map[string]rules.Role, len(r.players))
	for _, p := range r.players {
		roles[p.ID] = p.role
	}
	return roles
}

func (r *Room) broadcastStateLocked() {
	r.broadcastLocked(EventState, r.snapshotLocked())
}

func (r *Room) broadcastLocked(event string, payload any) {
	for _, p := range r.players {
		p.send(event, payload)
	}
}

func (r *Room) findLocked(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) callerLocked(c Caller) (*Player, error) {
	p := r.findLocked(c.ID)
	if p == nil {
		return nil, ErrUnknownVoter
	}
	if p.gen != c.Gen {
		return nil, ErrStaleConnection
	}
	return p, nil
}

func (r *Room) onTeamLocked(id string) bool {
	for _, m := range r.team {
		if m == id {
			return true
		}
	}
	return false
}

func (r *Room) touchLocked() {
	r.lastActivity = r.clock.Now()
}
