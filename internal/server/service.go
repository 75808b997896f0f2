package server

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/avalonserve/avalond/internal/registry"
	"github.com/avalonserve/avalond/internal/room"
)

// Service routes inbound actions to rooms. It owns no game state of its own:
// a room serializes its own mutations, so the service just resolves the
// (connection, room code) pair and applies the action. Actions against
// different rooms run fully in parallel.
type Service struct {
	registry *registry.Registry
	logger   zerolog.Logger
}

// NewService creates the action dispatch service.
func NewService(reg *registry.Registry, logger zerolog.Logger) *Service {
	return &Service{
		registry: reg,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// Registry exposes the room registry, mainly for the janitor and tests.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// Dispatch applies one inbound message from a client. Every outcome is
// complete-or-rejected: a rejected action leaves room state untouched and
// surfaces a toast to the offending caller only.
func (s *Service) Dispatch(c *Client, msg *Message) {
	s.logger.Debug().Str("type", msg.Type.String()).Msg("received message")

	switch msg.Type {
	case MessageTypeCreateRoom:
		var data CreateRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse createRoom data")
			return
		}
		s.handleCreateRoom(c, data)

	case MessageTypeJoinRoom:
		var data JoinRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse joinRoom data")
			return
		}
		s.handleJoinRoom(c, data)

	case MessageTypeLeaveRoom:
		s.handleLeaveRoom(c)

	case MessageTypeStartGame:
		var data StartGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse startGame data")
			return
		}
		s.withRoom(c, func(r *room.Room, caller room.Caller) error {
			return r.Start(caller, data.AssassinCount)
		})

	case MessageTypeDraftTeam:
		var data TeamData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse draftTeam data")
			return
		}
		s.withRoom(c, func(r *room.Room, caller room.Caller) error {
			return r.DraftTeam(caller, data.Team)
		})

	case MessageTypeSelectTeam:
		var data TeamData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse selectTeam data")
			return
		}
		s.withRoom(c, func(r *room.Room, caller room.Caller) error {
			// selectTeam commits: an explicit member list replaces the
			// draft first, otherwise the standing draft is committed.
			if len(data.Team) > 0 {
				if err := r.DraftTeam(caller, data.Team); err != nil {
					return err
				}
			}
			return r.ConfirmTeam(caller)
		})

	case MessageTypeVoteTeam:
		var data VoteData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse voteTeam data")
			return
		}
		approve, err := teamChoice(data.Vote)
		if err != nil {
			c.sendToast("invalidVote", err.Error())
			return
		}
		s.withRoom(c, func(r *room.Room, caller room.Caller) error {
			return r.VoteTeam(caller, approve)
		})

	case MessageTypeVoteMission:
		var data VoteData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse voteMission data")
			return
		}
		success, err := missionChoice(data.Vote)
		if err != nil {
			c.sendToast("invalidVote", err.Error())
			return
		}
		s.withRoom(c, func(r *room.Room, caller room.Caller) error {
			return r.VoteMission(caller, success)
		})

	case MessageTypeResetGame:
		s.withRoom(c, func(r *room.Room, caller room.Caller) error {
			return r.Reset(caller)
		})

	default:
		c.sendError("unknown_message_type", "unknown message type: "+msg.Type.String())
	}
}

func (s *Service) handleCreateRoom(c *Client, data CreateRoomData) {
	if code, _ := c.session(); code != "" {
		c.sendToast("alreadyInRoom", "leave your current room first")
		return
	}
	if data.Name == "" {
		c.sendToast("invalidName", "a display name is required")
		return
	}

	r := s.registry.Create(room.Config{
		MaxPlayers:    data.MaxPlayers,
		AssassinCount: data.AssassinCount,
	})

	id, gen, _, err := r.Join("", data.Name, data.Avatar, c)
	if err != nil {
		// A freshly created room cannot reject its creator; reclaim it.
		s.registry.Remove(r.Code())
		s.rejected(c, err)
		return
	}
	c.setSession(r.Code(), id, gen)

	_ = c.Send(string(MessageTypeRoomCreated), RoomCreatedData{
		RoomCode: r.Code(),
		Identity: id,
	})
}

func (s *Service) handleJoinRoom(c *Client, data JoinRoomData) {
	if code, _ := c.session(); code != "" {
		c.sendToast("alreadyInRoom", "leave your current room first")
		return
	}
	if data.Name == "" && data.PrevIdentity == "" {
		c.sendToast("invalidName", "a display name is required")
		return
	}

	r, err := s.registry.Get(data.RoomCode)
	if err != nil {
		// A stale identity for a dead room means the session is gone for
		// good; the client should fall back to the creation flow.
		if data.PrevIdentity != "" {
			s.rejected(c, registry.ErrIdentityNotFound)
			return
		}
		s.rejected(c, err)
		return
	}

	id, gen, reconnected, err := r.Join(data.PrevIdentity, data.Name, data.Avatar, c)
	if err != nil {
		s.rejected(c, err)
		return
	}
	c.setSession(r.Code(), id, gen)

	_ = c.Send(string(MessageTypeJoined), JoinedData{
		RoomCode:    r.Code(),
		Identity:    id,
		Reconnected: reconnected,
	})
}

func (s *Service) handleLeaveRoom(c *Client) {
	code, caller := c.session()
	if code == "" {
		c.sendToast("notInRoom", "you are not in a room")
		return
	}

	r, err := s.registry.Get(code)
	if err != nil {
		c.clearSession()
		return
	}

	remaining, err := r.Leave(caller)
	if err != nil {
		s.rejected(c, err)
		return
	}
	c.clearSession()

	if remaining == 0 {
		s.registry.Remove(code)
	}
}

// HandleDisconnect detaches a dropped connection from its room. The player
// stays on the roster; only the connection handle goes nil.
func (s *Service) HandleDisconnect(c *Client) {
	code, caller := c.session()
	if code == "" {
		return
	}
	r, err := s.registry.Get(code)
	if err != nil {
		return
	}
	r.Detach(caller)
}

// withRoom resolves the caller's room and applies fn, surfacing any
// rejection as a toast.
func (s *Service) withRoom(c *Client, fn func(*room.Room, room.Caller) error) {
	code, caller := c.session()
	if code == "" {
		c.sendToast("notInRoom", "join a room first")
		return
	}

	r, err := s.registry.Get(code)
	if err != nil {
		s.rejected(c, err)
		return
	}

	if err := fn(r, caller); err != nil {
		s.rejected(c, err)
	}
}

// rejected maps an engine rejection onto a toast for the offending caller.
func (s *Service) rejected(c *Client, err error) {
	c.sendToast(toastType(err), err.Error())
}

func toastType(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomFull):
		return "roomFull"
	case errors.Is(err, room.ErrAlreadyStarted):
		return "alreadyStarted"
	case errors.Is(err, room.ErrNotEnoughPlayers):
		return "notEnoughPlayers"
	case errors.Is(err, room.ErrInvalidAssassinCount):
		return "invalidAssassinCount"
	case errors.Is(err, room.ErrWrongPhase):
		return "wrongPhase"
	case errors.Is(err, room.ErrNotLeader):
		return "notLeader"
	case errors.Is(err, room.ErrWrongTeamSize):
		return "wrongTeamSize"
	case errors.Is(err, room.ErrDuplicateVote):
		return "duplicateVote"
	case errors.Is(err, room.ErrUnknownVoter):
		return "unknownVoter"
	case errors.Is(err, room.ErrNotOnTeam):
		return "notOnTeam"
	case errors.Is(err, room.ErrStaleConnection):
		return "staleConnection"
	case errors.Is(err, registry.ErrRoomNotFound):
		return "roomNotFound"
	case errors.Is(err, registry.ErrIdentityNotFound):
		return "identityNotFound"
	}
	return "rejected"
}
