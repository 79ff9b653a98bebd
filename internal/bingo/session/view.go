package session

import (
	"github.com/rbastidas/bingolive/internal/bingo/round"
	"github.com/rbastidas/bingolive/internal/transport/push"
)

// View is the read-only snapshot the UI layer renders from. All collections
// are copies; mutating them cannot touch session state.
type View struct {
	RoomID            string
	CurrentRound      int
	RoundStatus       round.Status
	IsTransitioning   bool
	CalledSet         map[string]struct{}
	LastN             []string
	CurrentNumber     string
	MarkedNumbers     map[int][]string
	HasClaimedBingo   bool
	ClaimedCardIDs    []string
	ClaimCountdownSec int
	EnrolledPlayers   int
	Connection        push.ConnState
}

// Snapshot returns the current view model.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := make(map[int][]string, len(s.marked))
	for card, values := range s.marked {
		marked[card] = sortedValues(values)
	}

	return View{
		RoomID:            s.roomID,
		CurrentRound:      s.rounds.Current(),
		RoundStatus:       s.rounds.Status(),
		IsTransitioning:   s.rounds.IsTransitioning(),
		CalledSet:         s.ledger.CalledSet(),
		LastN:             s.ledger.LastN(),
		CurrentNumber:     s.ledger.CurrentNumber(),
		MarkedNumbers:     marked,
		HasClaimedBingo:   s.claims.HasClaimed(),
		ClaimedCardIDs:    s.claims.ClaimedCards(),
		ClaimCountdownSec: Remaining(s.claimDeadline, s.serverNowLocked()),
		EnrolledPlayers:   s.enrolled,
		Connection:        s.conn,
	}
}

// MarkedCount returns the total number of marks across all cards.
func (v View) MarkedCount() int {
	total := 0
	for _, values := range v.MarkedNumbers {
		total += len(values)
	}
	return total
}
