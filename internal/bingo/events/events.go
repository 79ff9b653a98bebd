package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is the envelope every push message arrives in, regardless of
// transport. Data carries the type-specific payload.
type Event struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"room_id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Type identifies the kind of push event.
type Type string

const (
	TypeNumberCalled  Type = "number_called"
	TypeRoundCleanup  Type = "round_cleanup"
	TypeRoundStarted  Type = "round_started"
	TypeRoomStateSync Type = "room_state_sync"
	TypeBingoClaimed  Type = "bingo_claimed"
	TypePlayersUpdate Type = "players_update"
)

// NumberCalledPayload announces one newly drawn number.
type NumberCalledPayload struct {
	Value    string    `json:"value"`
	CalledAt time.Time `json:"called_at"`
}

// RoundStartedPayload confirms the next round is live.
type RoundStartedPayload struct {
	RoundNumber int `json:"round_number"`
}

// RoundSync is the authoritative view of one round carried by a
// room_state_sync event.
type RoundSync struct {
	RoundNumber   int      `json:"round_number"`
	CalledNumbers []string `json:"called_numbers"`
	CalledCount   int      `json:"called_count"`
	Status        string   `json:"status"`
}

// RoomStateSyncPayload is a full-state correction pushed by the server.
type RoomStateSyncPayload struct {
	Round RoundSync `json:"round"`
}

// BingoClaimedPayload announces a claim under adjudication. ClaimDeadline is
// the server timestamp at which the claim window closes.
type BingoClaimedPayload struct {
	RoundNumber   int       `json:"round_number"`
	CardID        string    `json:"card_id"`
	Winner        string    `json:"winner"`
	ClaimDeadline time.Time `json:"claim_deadline"`
}

// PlayersUpdatePayload carries the enrolled-player count for the room.
type PlayersUpdatePayload struct {
	Enrolled int `json:"enrolled"`
}

// Parse decodes a raw push frame into an Event envelope.
func Parse(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("event missing type")
	}
	return &ev, nil
}

// ParsePayload parses event data into the appropriate payload struct.
// Unknown event types return (nil, nil) so callers can drop them.
func ParsePayload(ev *Event) (interface{}, error) {
	switch ev.Type {
	case TypeNumberCalled:
		var payload NumberCalledPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case TypeRoundCleanup:
		return struct{}{}, nil

	case TypeRoundStarted:
		var payload RoundStartedPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case TypeRoomStateSync:
		var payload RoomStateSyncPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case TypeBingoClaimed:
		var payload BingoClaimedPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case TypePlayersUpdate:
		var payload PlayersUpdatePayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
