package roomapi

import "time"

// RoundState is one round's authoritative state.
type RoundState struct {
	RoundNumber   int      `json:"round_number"`
	Status        string   `json:"status"`
	CalledNumbers []string `json:"called_numbers"`
	CalledCount   int      `json:"called_count"`
}

// BingoClaimState describes a claim currently under adjudication, if any.
type BingoClaimState struct {
	RoundNumber   int        `json:"round_number"`
	CardID        string     `json:"card_id"`
	ClaimedBy     string     `json:"claimed_by"`
	ClaimDeadline *time.Time `json:"claim_deadline,omitempty"`
}

// RoomState is the full authoritative snapshot for a room.
type RoomState struct {
	CurrentRound  int              `json:"current_round"`
	Rounds        []RoundState     `json:"rounds"`
	CalledNumbers []string         `json:"called_numbers"`
	BingoState    *BingoClaimState `json:"bingo_state,omitempty"`
	ServerTime    *time.Time       `json:"server_time,omitempty"`
}

// CurrentRoundState returns the entry of Rounds matching CurrentRound,
// or nil when the snapshot does not include it.
func (s *RoomState) CurrentRoundState() *RoundState {
	for i := range s.Rounds {
		if s.Rounds[i].RoundNumber == s.CurrentRound {
			return &s.Rounds[i]
		}
	}
	return nil
}

// ClaimRequest is a bingo claim submission. IdempotencyKey lets the server
// dedupe a retried claim whose first attempt actually landed.
type ClaimRequest struct {
	RoundNumber    int      `json:"round_number"`
	CardID         string   `json:"card_id"`
	MarkedNumbers  []string `json:"marked_numbers"`
	IdempotencyKey string   `json:"idempotency_key"`
}

// ClaimResponse is the server's verdict on a claim.
type ClaimResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
