package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/rbastidas/bingolive/internal/bingo/claim"
	"github.com/rbastidas/bingolive/internal/bingo/events"
	"github.com/rbastidas/bingolive/internal/bingo/ledger"
	"github.com/rbastidas/bingolive/internal/bingo/round"
	"github.com/rbastidas/bingolive/internal/clients/roomapi"
	"github.com/rbastidas/bingolive/internal/transport/push"
)

// RoomAPI is the authoritative REST surface the session syncs against.
type RoomAPI interface {
	GetRoomState(ctx context.Context, roomID string) (*roomapi.RoomState, error)
	GetRounds(ctx context.Context, roomID string) ([]roomapi.RoundState, error)
	SubmitClaim(ctx context.Context, roomID string, req roomapi.ClaimRequest) (*roomapi.ClaimResponse, error)
	GetEnrolled(ctx context.Context, roomID string) (int, error)
	GetServerTime(ctx context.Context) (time.Time, error)
}

// ErrTransitioning rejects player actions during the cleanup-to-start window.
var ErrTransitioning = errors.New("round transition in progress")

// ErrClaimBlocked rejects resubmission for a card that took a pattern-error
// rejection this round.
var ErrClaimBlocked = errors.New("claim blocked for this card after pattern rejection")

// MarksOutOfSyncError reports marked numbers the local ledger has never seen.
// The fix is a resync, not a different claim.
type MarksOutOfSyncError struct {
	InvalidNumbers []string
}

func (e *MarksOutOfSyncError) Error() string {
	return fmt.Sprintf("marked numbers not called this round: %s (resync required)",
		strings.Join(e.InvalidNumbers, ", "))
}

// ClaimResult is the adjudicated outcome of one claim submission.
type ClaimResult struct {
	Accepted  bool
	Message   string
	Rejection *claim.Classification // nil when accepted
}

// Session owns one room's live-game state: the called-number ledger, the
// round lifecycle mirror, claim state, and the player's marks. Every trigger
// source (push event, poll, reconnect, visibility, manual sync) mutates state
// through the same merge operations under one mutex, which is what makes the
// monotonicity invariants enforceable.
type Session struct {
	id     uuid.UUID
	roomID string
	api    RoomAPI
	clock  clockwork.Clock

	mu            sync.Mutex
	ledger        *ledger.Ledger
	rounds        *round.Controller
	claims        *claim.Tracker
	marked        map[int]map[string]struct{}
	enrolled      int
	conn          push.ConnState
	lastPushAt    time.Time
	clockOffset   time.Duration
	claimDeadline time.Time
}

// New creates a session for roomID. The clock drives countdown math and
// push-freshness bookkeeping.
func New(roomID string, api RoomAPI, clock clockwork.Clock) *Session {
	return &Session{
		id:     uuid.New(),
		roomID: roomID,
		api:    api,
		clock:  clock,
		ledger: ledger.New(),
		rounds: round.New(),
		claims: claim.NewTracker(),
		marked: make(map[int]map[string]struct{}),
		conn:   push.StateDisconnected,
	}
}

// RoomID returns the room this session tracks.
func (s *Session) RoomID() string {
	return s.roomID
}

// Start estimates the server clock offset and performs the initial
// authoritative sync. Failures are logged and left to the next sync trigger;
// a fresh session is expected to converge, not to abort.
func (s *Session) Start(ctx context.Context) {
	if serverNow, err := s.api.GetServerTime(ctx); err != nil {
		log.Warn().Err(err).Str("room_id", s.roomID).Msg("server time unavailable, assuming zero clock offset")
	} else {
		s.mu.Lock()
		s.clockOffset = serverNow.Sub(s.clock.Now())
		s.mu.Unlock()
	}

	if err := s.SyncAuthoritative(ctx); err != nil {
		log.Warn().Err(err).Str("room_id", s.roomID).Msg("initial sync failed, waiting for next trigger")
	}
}

// HandlePushEvent applies one push event. Events for other rooms are dropped.
func (s *Session) HandlePushEvent(ev *events.Event) {
	if ev.RoomID != "" && ev.RoomID != s.roomID {
		return
	}

	payload, err := events.ParsePayload(ev)
	if err != nil {
		log.Debug().Err(err).Str("type", string(ev.Type)).Msg("dropping malformed push payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPushAt = s.clock.Now()

	switch p := payload.(type) {
	case events.NumberCalledPayload:
		s.ledger.ApplyIncremental(p.Value, p.CalledAt)

	case struct{}: // round_cleanup
		// The outgoing round's numbers stay on screen through the
		// handoff; only the player's marks are meaningless now.
		s.rounds.BeginCleanup()
		s.clearMarksLocked()

	case events.RoundStartedPayload:
		s.confirmRoundStartLocked(p.RoundNumber)

	case events.RoomStateSyncPayload:
		info := round.Info{Number: p.Round.RoundNumber, Status: round.Status(p.Round.Status)}
		s.mergeAuthoritativeLocked(info, p.Round.CalledNumbers, p.Round.CalledCount, nil)

	case events.BingoClaimedPayload:
		if p.RoundNumber == s.rounds.Current() {
			s.rounds.SetStatus(round.StatusBingoClaimed)
			if !p.ClaimDeadline.IsZero() {
				s.claimDeadline = p.ClaimDeadline
			}
		}

	case events.PlayersUpdatePayload:
		s.enrolled = p.Enrolled

	default:
		log.Debug().Str("type", string(ev.Type)).Msg("dropping unknown push event")
	}
}

// OnConnStateChange records push connectivity for the view model. Register it
// as a transport state listener.
func (s *Session) OnConnStateChange(_, current push.ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = current
}

// LastPushAt returns when the push channel last delivered anything. The
// polling fallback uses it as its freshness gate.
func (s *Session) LastPushAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPushAt
}

// SyncAuthoritative fetches the full room state and merges it through the
// same contract push events use. This is the single fetch-and-merge behind
// reconnects, visibility returns, poll ticks, and ForceSync.
func (s *Session) SyncAuthoritative(ctx context.Context) error {
	state, err := s.api.GetRoomState(ctx, s.roomID)
	if err != nil {
		return fmt.Errorf("fetch room state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if state.ServerTime != nil {
		s.clockOffset = state.ServerTime.Sub(s.clock.Now())
	}

	known := toRoundInfos(state.Rounds)
	if cur := state.CurrentRoundState(); cur != nil {
		info := round.Info{Number: cur.RoundNumber, Status: round.Status(cur.Status)}
		s.mergeAuthoritativeLocked(info, cur.CalledNumbers, cur.CalledCount, known)
	} else if s.ledger.Size() == 0 && state.CurrentRound >= s.rounds.Current() {
		// No per-round scope in the snapshot. The room-wide called list
		// may span rounds, so it only seeds an empty ledger.
		info := round.Info{Number: state.CurrentRound, Status: round.StatusInProgress}
		s.mergeAuthoritativeLocked(info, state.CalledNumbers, len(state.CalledNumbers), known)
	} else {
		log.Warn().
			Str("room_id", s.roomID).
			Int("current_round", state.CurrentRound).
			Msg("snapshot lacks per-round scope, keeping local ledger")
	}

	if state.BingoState != nil &&
		state.BingoState.RoundNumber == s.rounds.Current() &&
		state.BingoState.ClaimDeadline != nil {
		s.rounds.SetStatus(round.StatusBingoClaimed)
		s.claimDeadline = *state.BingoState.ClaimDeadline
	}
	return nil
}

// SyncLifecycle refreshes the round list and enrolled-player count. This is
// the lower-cadence poll; it never touches called numbers.
func (s *Session) SyncLifecycle(ctx context.Context) error {
	rounds, err := s.api.GetRounds(ctx, s.roomID)
	if err != nil {
		return fmt.Errorf("fetch rounds: %w", err)
	}

	s.mu.Lock()
	known := toRoundInfos(rounds)
	if candidate, ok := currentCandidate(known); ok && !s.claimCountdownActiveLocked() {
		if s.rounds.ApplyUpdate(candidate, known) {
			s.resetForNewRoundLocked()
		}
	}
	drift := false
	for _, r := range rounds {
		if r.RoundNumber == s.rounds.Current() && s.ledger.SizeMismatch(r.CalledCount) {
			drift = true
		}
	}
	s.mu.Unlock()

	if drift {
		log.Info().Str("room_id", s.roomID).Msg("called-number drift detected, running authoritative resync")
		if err := s.SyncAuthoritative(ctx); err != nil {
			log.Warn().Err(err).Str("room_id", s.roomID).Msg("drift resync failed, keeping current state")
		}
	}

	enrolled, err := s.api.GetEnrolled(ctx, s.roomID)
	if err != nil {
		return fmt.Errorf("fetch enrolled players: %w", err)
	}
	s.mu.Lock()
	s.enrolled = enrolled
	s.mu.Unlock()
	return nil
}

// ForceSync triggers an immediate authoritative fetch-and-merge.
func (s *Session) ForceSync(ctx context.Context) error {
	return s.SyncAuthoritative(ctx)
}

// ToggleMark flips one value on one card. Marks are suspended while the room
// transitions between rounds.
func (s *Session) ToggleMark(cardIndex int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rounds.IsTransitioning() {
		return ErrTransitioning
	}
	marks := s.marked[cardIndex]
	if marks == nil {
		marks = make(map[string]struct{})
		s.marked[cardIndex] = marks
	}
	if _, ok := marks[value]; ok {
		delete(marks, value)
	} else {
		marks[value] = struct{}{}
	}
	return nil
}

// SubmitBingoClaim pre-validates cardIndex's marks against the ledger,
// submits the claim, and records the verdict. A rejection never consumes the
// round's claim eligibility.
func (s *Session) SubmitBingoClaim(ctx context.Context, cardIndex int, cardID string) (*ClaimResult, error) {
	s.mu.Lock()
	if s.rounds.IsTransitioning() {
		s.mu.Unlock()
		return nil, ErrTransitioning
	}
	if s.claims.IsBlocked(cardID) {
		s.mu.Unlock()
		return nil, ErrClaimBlocked
	}
	marks := copySet(s.marked[cardIndex])
	pre := claim.PreValidate(marks, s.ledger.CalledSet())
	roundNumber := s.rounds.Current()
	s.mu.Unlock()

	if !pre.ShouldProceed {
		return nil, &MarksOutOfSyncError{InvalidNumbers: pre.InvalidNumbers}
	}

	req := roomapi.ClaimRequest{
		RoundNumber:    roundNumber,
		CardID:         cardID,
		MarkedNumbers:  sortedValues(marks),
		IdempotencyKey: uuid.NewString(),
	}
	resp, err := s.api.SubmitClaim(ctx, s.roomID, req)
	if err != nil {
		return nil, fmt.Errorf("submit claim: %w", err)
	}

	s.mu.Lock()
	var rejection *claim.Classification
	if roundNumber == s.rounds.Current() {
		rejection = s.claims.OnClaimResponse(cardID, claim.Response{Success: resp.Success, Message: resp.Message})
	} else if !resp.Success {
		// The round moved while the claim was in flight; the verdict
		// belongs to the old round and must not touch the new one.
		c := claim.ClassifyRejection(resp.Message)
		rejection = &c
	}
	s.mu.Unlock()

	return &ClaimResult{Accepted: resp.Success, Message: resp.Message, Rejection: rejection}, nil
}

// mergeAuthoritativeLocked is the one reconciliation algorithm for
// authoritative data, whatever triggered the fetch. A proven round-number
// change outranks the ledger's shrink guard: the ledger is reset before the
// snapshot is evaluated, so the size comparison only ever runs within one
// round's scope.
func (s *Session) mergeAuthoritativeLocked(info round.Info, calledNumbers []string, calledCount int, known []round.Info) {
	if info.Number != s.rounds.Current() {
		if s.claimCountdownActiveLocked() {
			log.Debug().
				Str("room_id", s.roomID).
				Int("round", s.rounds.Current()).
				Msg("claim countdown active, round advance check suspended")
			return
		}
		if !s.rounds.ApplyUpdate(info, known) {
			return
		}
		s.resetForNewRoundLocked()
	} else {
		s.rounds.SetStatus(info.Status)
	}

	if !s.ledger.ApplyAuthoritativeSnapshot(calledNumbers) {
		log.Warn().
			Str("room_id", s.roomID).
			Int("local_size", s.ledger.Size()).
			Int("snapshot_size", len(calledNumbers)).
			Msg("refusing authoritative snapshot smaller than local ledger")
		return
	}
	if s.ledger.SizeMismatch(calledCount) {
		log.Warn().
			Str("room_id", s.roomID).
			Int("local_size", s.ledger.Size()).
			Int("server_count", calledCount).
			Msg("called-number count drift after snapshot merge")
	}
}

func (s *Session) confirmRoundStartLocked(roundNumber int) {
	if s.rounds.ConfirmStart(roundNumber) {
		s.resetForNewRoundLocked()
	}
}

// resetForNewRoundLocked clears everything scoped to the outgoing round.
func (s *Session) resetForNewRoundLocked() {
	s.ledger.ResetForNewRound()
	s.claims.ResetForNewRound()
	s.clearMarksLocked()
	s.claimDeadline = time.Time{}
}

func (s *Session) clearMarksLocked() {
	s.marked = make(map[int]map[string]struct{})
}

func (s *Session) serverNowLocked() time.Time {
	return s.clock.Now().Add(s.clockOffset)
}

func (s *Session) claimCountdownActiveLocked() bool {
	return !s.claimDeadline.IsZero() && s.claimDeadline.After(s.serverNowLocked())
}

func toRoundInfos(rounds []roomapi.RoundState) []round.Info {
	out := make([]round.Info, 0, len(rounds))
	for _, r := range rounds {
		out = append(out, round.Info{Number: r.RoundNumber, Status: round.Status(r.Status)})
	}
	return out
}

// currentCandidate picks the round the server considers live: the highest
// active round, else the lowest pending one.
func currentCandidate(known []round.Info) (round.Info, bool) {
	var best round.Info
	found := false
	for _, r := range known {
		switch r.Status {
		case round.StatusStarting, round.StatusInProgress, round.StatusBingoClaimed:
			if !found || r.Number > best.Number {
				best = r
				found = true
			}
		}
	}
	if found {
		return best, true
	}
	for _, r := range known {
		if r.Status == round.StatusPending && (!found || r.Number < best.Number) {
			best = r
			found = true
		}
	}
	return best, found
}

func copySet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for v := range in {
		out[v] = struct{}{}
	}
	return out
}

func sortedValues(in map[string]struct{}) []string {
	out := make([]string, 0, len(in))
	for v := range in {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
