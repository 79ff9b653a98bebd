package claim

import (
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Kind buckets a server-side claim rejection.
type Kind string

const (
	// KindSyncError means the marked numbers did not match the current
	// round's called numbers, the classic stale-client failure. A resync
	// fixes it, so retry is allowed.
	KindSyncError Kind = "sync_error"
	// KindPatternError means the marked set does not satisfy the round's
	// win pattern. No amount of resyncing fixes that; retry is blocked.
	KindPatternError Kind = "pattern_error"
	// KindOther covers everything else; the client gives the benefit of
	// the doubt and allows retry.
	KindOther Kind = "other"
)

// Classification is the retry decision for one rejection, fixed at the
// instant the rejection is received.
type Classification struct {
	CanRetry bool
	Kind     Kind
}

// PreValidation is the result of checking a claim locally before submission.
type PreValidation struct {
	ShouldProceed  bool
	InvalidNumbers []string
}

// Response is the server's answer to a claim submission.
type Response struct {
	Success bool
	Message string
}

// PreValidate computes marked \ called. Any marked number the ledger has not
// seen blocks the submission locally and is surfaced so the UI can advise a
// resync.
func PreValidate(marked, called map[string]struct{}) PreValidation {
	var invalid []string
	for v := range marked {
		if _, ok := called[v]; !ok {
			invalid = append(invalid, v)
		}
	}
	sort.Strings(invalid)
	return PreValidation{
		ShouldProceed:  len(invalid) == 0,
		InvalidNumbers: invalid,
	}
}

// ClassifyRejection buckets a server rejection message. Checked in priority
// order: a number-not-called rejection wins over a pattern rejection if a
// message somehow matched both.
func ClassifyRejection(serverMessage string) Classification {
	msg := strings.ToLower(serverMessage)
	switch {
	case strings.Contains(msg, "no fue llamado"):
		return Classification{CanRetry: true, Kind: KindSyncError}
	case strings.Contains(msg, "patrón") || strings.Contains(msg, "patron"):
		return Classification{CanRetry: false, Kind: KindPatternError}
	default:
		return Classification{CanRetry: true, Kind: KindOther}
	}
}

// Tracker holds per-round claim state for one room.
//
// A failed claim never sets hasClaimed, whatever the rejection kind: the
// pattern-error block is a per-card policy layered on top, not part of the
// claim flag itself.
type Tracker struct {
	hasClaimed    bool
	claimedCards  map[string]struct{}
	blockedCards  map[string]struct{}
	lastRejection *Classification
}

// NewTracker returns an empty per-round tracker.
func NewTracker() *Tracker {
	return &Tracker{
		claimedCards: make(map[string]struct{}),
		blockedCards: make(map[string]struct{}),
	}
}

// OnClaimResponse records the outcome of a submission for cardID and returns
// the classification for rejections, nil for accepted claims.
func (t *Tracker) OnClaimResponse(cardID string, resp Response) *Classification {
	if resp.Success {
		t.hasClaimed = true
		t.claimedCards[cardID] = struct{}{}
		t.lastRejection = nil
		log.Info().Str("card_id", cardID).Msg("bingo claim accepted")
		return nil
	}

	c := ClassifyRejection(resp.Message)
	t.lastRejection = &c
	if c.Kind == KindPatternError {
		t.blockedCards[cardID] = struct{}{}
	}
	log.Warn().
		Str("card_id", cardID).
		Str("kind", string(c.Kind)).
		Bool("can_retry", c.CanRetry).
		Str("message", resp.Message).
		Msg("bingo claim rejected")
	return &c
}

// ResetForNewRound clears all claim state. Invoked on every confirmed round
// advance regardless of how the previous round's claim resolved.
func (t *Tracker) ResetForNewRound() {
	t.hasClaimed = false
	t.claimedCards = make(map[string]struct{})
	t.blockedCards = make(map[string]struct{})
	t.lastRejection = nil
}

// HasClaimed reports whether a claim succeeded this round.
func (t *Tracker) HasClaimed() bool {
	return t.hasClaimed
}

// ClaimedCards returns the card IDs with accepted claims this round.
func (t *Tracker) ClaimedCards() []string {
	out := make([]string, 0, len(t.claimedCards))
	for id := range t.claimedCards {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsBlocked reports whether cardID took a pattern-error rejection this round.
func (t *Tracker) IsBlocked(cardID string) bool {
	_, ok := t.blockedCards[cardID]
	return ok
}

// LastRejection returns the classification of the most recent rejection,
// or nil if the last response succeeded or none arrived yet.
func (t *Tracker) LastRejection() *Classification {
	return t.lastRejection
}
