package services

import (
	"encoding/json"
	"fmt"

	"quizroom/models"
)

// Inbound frame tags accepted over the room connection.
const (
	InboundCreateRoom = "create_room"
	InboundJoinRoom   = "join_room"
	InboundAnswer     = "answer"
)

// Outbound frame tags.
const (
	OutboundRoomCreated    = "room_created"
	OutboundRoomJoined     = "room_joined"
	OutboundUpdatePlayers  = "update_players"
	OutboundQuestion       = "question"
	OutboundAnswerFeedback = "answer_feedback"
	OutboundResults        = "results"
	OutboundGameOver       = "game_over"
	OutboundError          = "error"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type RoomRefPayload struct {
	RoomID    string `json:"room_id"`
	UserToken string `json:"user_token"`
}

type AnswerPayload struct {
	AnswerID   uint   `json:"answer_id,omitempty"`
	AnswerText string `json:"answer_text,omitempty"`
}

// InboundFrame is the closed set of client messages. Exactly one of the
// payload fields is non-nil, matching Type.
type InboundFrame struct {
	Type       string
	CreateRoom *RoomRefPayload
	JoinRoom   *RoomRefPayload
	Answer     *AnswerPayload
}

// DecodeInbound parses a raw client frame. An unrecognized tag yields
// ErrUnknownMessage rather than being silently dropped.
func DecodeInbound(data []byte) (*InboundFrame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed frame", ErrUnknownMessage)
	}

	frame := &InboundFrame{Type: env.Type}
	switch env.Type {
	case InboundCreateRoom:
		frame.CreateRoom = &RoomRefPayload{}
		if err := json.Unmarshal(env.Payload, frame.CreateRoom); err != nil {
			return nil, fmt.Errorf("%w: bad %s payload", ErrUnknownMessage, env.Type)
		}
	case InboundJoinRoom:
		frame.JoinRoom = &RoomRefPayload{}
		if err := json.Unmarshal(env.Payload, frame.JoinRoom); err != nil {
			return nil, fmt.Errorf("%w: bad %s payload", ErrUnknownMessage, env.Type)
		}
	case InboundAnswer:
		frame.Answer = &AnswerPayload{}
		if err := json.Unmarshal(env.Payload, frame.Answer); err != nil {
			return nil, fmt.Errorf("%w: bad %s payload", ErrUnknownMessage, env.Type)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
	return frame, nil
}

// Outbound is a server frame ready for JSON encoding. Error frames carry
// their text in Message, everything else in Payload.
type Outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Message string `json:"message,omitempty"`
}

func (o Outbound) Encode() []byte {
	data, err := json.Marshal(o)
	if err != nil {
		// Frames are built from plain structs; this cannot fail at runtime.
		return []byte(`{"type":"error","message":"encoding failure"}`)
	}
	return data
}

type RosterEntry struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar,omitempty"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

type RosterPayload struct {
	RoomID        string        `json:"room_id,omitempty"`
	Players       []RosterEntry `json:"players"`
	HostID        string        `json:"host_id"`
	CurrentUserID string        `json:"current_user_id,omitempty"`
}

type OptionView struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

// QuestionView is the client-facing shape of a question. It never carries
// the answer key or option correctness.
type QuestionView struct {
	ID      uint         `json:"id"`
	Type    string       `json:"type"`
	Text    string       `json:"text"`
	Image   string       `json:"image,omitempty"`
	Options []OptionView `json:"options,omitempty"`
}

type QuestionPayload struct {
	Question QuestionView `json:"question"`
	CurrentQ int          `json:"current_q"`
	TotalQ   int          `json:"total_q"`
}

type AnswerFeedbackPayload struct {
	Correct bool `json:"correct"`
}

type LeaderboardEntry struct {
	PlayerID string `json:"id"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
	Delta    int    `json:"delta"`
	Rank     int    `json:"rank"`
}

type ResultsPayload struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	CorrectID   uint               `json:"correct_id"`
}

func questionView(q *models.Question) QuestionView {
	view := QuestionView{
		ID:    q.ID,
		Type:  q.Type,
		Text:  q.Text,
		Image: q.Image,
	}
	for _, option := range q.Options {
		view.Options = append(view.Options, OptionView{ID: option.ID, Text: option.Text})
	}
	return view
}

func errorFrame(err error) Outbound {
	return Outbound{Type: OutboundError, Message: err.Error()}
}
