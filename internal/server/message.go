package server

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the base websocket message envelope.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type CreateRoomData struct {
	Name          string `json:"name"`
	Avatar        string `json:"avatar,omitempty"`
	MaxPlayers    int    `json:"maxPlayers,omitempty"`
	AssassinCount int    `json:"assassinCount,omitempty"`
}

type JoinRoomData struct {
	Name     string `json:"name"`
	RoomCode string `json:"roomCode"`
	Avatar   string `json:"avatar,omitempty"`
	// PrevIdentity carries a durable identity recovered from client-held
	// state; presenting it reattaches an existing roster member.
	PrevIdentity string `json:"prevIdentity,omitempty"`
}

// RoomRefData addresses an action at a room the caller is already in.
type RoomRefData struct {
	RoomCode string `json:"roomCode"`
}

type StartGameData struct {
	RoomCode      string `json:"roomCode"`
	AssassinCount int    `json:"assassinCount"`
}

type TeamData struct {
	RoomCode string   `json:"roomCode"`
	Team     []string `json:"team"`
}

type VoteData struct {
	RoomCode string `json:"roomCode"`
	Vote     string `json:"vote"`
}

// Vote choice domains. Team votes are approve/reject; mission votes are
// success/fail.
const (
	VoteApprove = "approve"
	VoteReject  = "reject"
	VoteSuccess = "success"
	VoteFail    = "fail"
)

// teamChoice parses a team vote into its boolean form.
func teamChoice(vote string) (bool, error) {
	switch vote {
	case VoteApprove:
		return true, nil
	case VoteReject:
		return false, nil
	}
	return false, fmt.Errorf("invalid team vote %q", vote)
}

// missionChoice parses a mission vote into its boolean form.
func missionChoice(vote string) (bool, error) {
	switch vote {
	case VoteSuccess:
		return true, nil
	case VoteFail:
		return false, nil
	}
	return false, fmt.Errorf("invalid mission vote %q", vote)
}

// Server → Client Messages

type RoomCreatedData struct {
	RoomCode string `json:"roomCode"`
	Identity string `json:"identity"`
}

type JoinedData struct {
	RoomCode    string `json:"roomCode"`
	Identity    string `json:"identity"`
	Reconnected bool   `json:"reconnected,omitempty"`
}

type ToastData struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
