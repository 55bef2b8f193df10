package network

// Inbound events.
const (
	EventPing        = "ping"
	EventJoin        = "join"
	EventLeave       = "leave"
	EventSetReady    = "set_ready"
	EventProgress    = "progress"
	EventFinished    = "finished"
	EventVote        = "vote"
	EventRematch     = "rematch"
	EventFindMatch   = "find_match"
	EventCancelMatch = "cancel_match"
)

// Outbound events.
const (
	EventRoomState      = "room_state"
	EventPlayerProgress = "player_progress"
	EventMatchFound     = "match_found"
	EventQueueJoined    = "queue_joined"
	EventQueueLeft      = "queue_left"
	EventError          = "error"
)
