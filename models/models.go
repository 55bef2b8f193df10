package models

import (
	"encoding/json"
	"time"
)

// TextSource records where a room's race text came from.
type TextSource string

const (
	TextSourceRandom TextSource = "random"
	TextSourceTopic  TextSource = "topic"
	TextSourceCustom TextSource = "custom"
)

// Player is one seat in a room. All mutation happens under the room's
// lock inside the room service; snapshots copy it out.
type Player struct {
	ID           string  `json:"id"`
	Username     string  `json:"username"`
	Progress     float64 `json:"progress"`
	WPM          float64 `json:"wpm"`
	Accuracy     float64 `json:"accuracy"`
	Ready        bool    `json:"ready"`
	Connected    bool    `json:"connected"`
	Finished     bool    `json:"finished"`
	FinishTime   int64   `json:"finishTime,omitempty"` // unix millis, 0 = not finished
	Vote         string  `json:"vote,omitempty"`
	WantsRematch bool    `json:"wantsRematch"`
}

// RoomSnapshot is the serializable view of a room sent to its
// participants after every state change. Timer handles never appear here.
type RoomSnapshot struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Phase              string             `json:"phase"`
	CreatedAt          time.Time          `json:"createdAt"`
	TimeLimit          int                `json:"timeLimit"`
	TextLength         int                `json:"textLength"`
	PlayerLimit        int                `json:"playerLimit"`
	Ranked             bool               `json:"ranked"`
	Players            map[string]*Player `json:"players"`
	Text               string             `json:"text"`
	TextSource         TextSource         `json:"textSource"`
	Topic              string             `json:"topic,omitempty"`
	VoteOptions        []string           `json:"voteOptions,omitempty"`
	HostID             string             `json:"hostId,omitempty"`
	CountdownStartedAt int64              `json:"countdownStartedAt,omitempty"`
	VotingEndTime      int64              `json:"votingEndTime,omitempty"`
	StartTime          int64              `json:"startTime,omitempty"`
	Winner             string             `json:"winner,omitempty"`
}

// ProgressUpdate is the lightweight per-keystroke fan-out. It goes to the
// other participants only, never back to its author.
type ProgressUpdate struct {
	PlayerID string  `json:"playerId"`
	Username string  `json:"username"`
	Progress float64 `json:"progress"`
	WPM      float64 `json:"wpm"`
	Accuracy float64 `json:"accuracy"`
}

// QueueEntry is a pending matchmaking request. Entries are stored as JSON
// members of the rating-scored queue, so the whole struct must round-trip
// byte-for-byte for removal to find them again.
type QueueEntry struct {
	PlayerID   string `json:"playerId"`
	Username   string `json:"username"`
	Rating     int    `json:"rating"`
	SessionID  string `json:"sessionId"`
	EnqueuedAt int64  `json:"enqueuedAt"`
}

// RaceResult is handed to the stats sink when a ranked race completes.
type RaceResult struct {
	RoomID     string             `json:"roomId"`
	Ranked     bool               `json:"ranked"`
	WinnerID   string             `json:"winnerId"`
	DurationMs int64              `json:"durationMs"`
	Players    []RacePlayerResult `json:"players"`
}

type RacePlayerResult struct {
	PlayerID   string  `json:"playerId"`
	Username   string  `json:"username"`
	WPM        float64 `json:"wpm"`
	Accuracy   float64 `json:"accuracy"`
	FinishTime int64   `json:"finishTime,omitempty"`
	Rating     int     `json:"rating"`
}

// Message is the JSON envelope both directions on the socket.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// InboundMessage defers payload decoding until the event is routed.
type InboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound payloads.

type JoinPayload struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
}

type ProgressPayload struct {
	Progress float64 `json:"progress"`
	WPM      float64 `json:"wpm"`
	Accuracy float64 `json:"accuracy"`
}

type FinishedPayload struct {
	WPM      *float64 `json:"wpm,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

type VotePayload struct {
	Topic string `json:"topic"`
}

type FindMatchPayload struct {
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
}

// Outbound payloads.

type MatchFoundPayload struct {
	RoomID   string `json:"roomId"`
	Opponent string `json:"opponent"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
