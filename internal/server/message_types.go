package server

// MessageType represents a websocket message type with type safety.
// Server-to-client types deliberately share their names with the engine's
// event constants in internal/room so a Sender can forward events verbatim.
type MessageType string

const (
	// Client to server messages
	MessageTypeCreateRoom  MessageType = "createRoom"
	MessageTypeJoinRoom    MessageType = "joinRoom"
	MessageTypeLeaveRoom   MessageType = "leaveRoom"
	MessageTypeStartGame   MessageType = "startGame"
	MessageTypeDraftTeam   MessageType = "draftTeam"
	MessageTypeSelectTeam  MessageType = "selectTeam"
	MessageTypeVoteTeam    MessageType = "voteTeam"
	MessageTypeVoteMission MessageType = "voteMission"
	MessageTypeResetGame   MessageType = "resetGame"

	// Server to client messages
	MessageTypeRoomCreated   MessageType = "roomCreated"
	MessageTypeJoined        MessageType = "joined"
	MessageTypeState         MessageType = "state"
	MessageTypeYourRole      MessageType = "yourRole"
	MessageTypeTeamVoteStart MessageType = "teamVoteStart"
	MessageTypeMissionResult MessageType = "missionResult"
	MessageTypeGameOver      MessageType = "gameOver"
	MessageTypeToast         MessageType = "toast"
	MessageTypeError         MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
