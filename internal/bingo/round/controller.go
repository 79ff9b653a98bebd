package round

import (
	"github.com/rs/zerolog/log"
)

// Status mirrors the server-driven round lifecycle.
type Status string

const (
	StatusPending      Status = "pending"
	StatusStarting     Status = "starting"
	StatusInProgress   Status = "in_progress"
	StatusBingoClaimed Status = "bingo_claimed"
	StatusFinished     Status = "finished"
)

// Info is one round's identity and lifecycle as reported by the server.
type Info struct {
	Number int
	Status Status
}

// Controller tracks which round the client displays and when it is allowed
// to move. The displayed round number never regresses: out-of-order delivery
// is absorbed by the advance guard, and a server that genuinely reports an
// older round is a data anomaly that gets logged, not applied.
//
// Not safe for concurrent use; the owning session serializes access.
type Controller struct {
	current       int
	status        Status
	transitioning bool
}

// New returns a controller with no round tracked yet.
func New() *Controller {
	return &Controller{status: StatusPending}
}

// Current returns the displayed round number, 0 before the first confirmation.
func (c *Controller) Current() int {
	return c.current
}

// Status returns the displayed round's lifecycle status.
func (c *Controller) Status() Status {
	return c.status
}

// IsTransitioning reports whether the client sits between a round-cleanup
// signal and the next confirmed round start.
func (c *Controller) IsTransitioning() bool {
	return c.transitioning
}

// BeginCleanup marks the transition window open. Ledger state is deliberately
// left alone so the outgoing round's numbers stay on screen during the
// handoff.
func (c *Controller) BeginCleanup() {
	c.transitioning = true
	log.Debug().Int("round", c.current).Msg("round cleanup received, transition window open")
}

// ConfirmStart closes the transition window and advances to newRound.
// A start for a round the client already displays (or older) is refused.
// Reports whether the round advanced, which is the caller's cue to reset
// ledger and claim state.
func (c *Controller) ConfirmStart(newRound int) bool {
	if newRound <= c.current {
		log.Warn().
			Int("current_round", c.current).
			Int("reported_round", newRound).
			Msg("ignoring round start that does not advance the round")
		return false
	}
	c.current = newRound
	c.status = StatusInProgress
	c.transitioning = false
	log.Info().Int("round", newRound).Msg("round started")
	return true
}

// ShouldAdvance implements the round-advance guard for authoritative round
// lists. It admits an update when the candidate round is numerically ahead,
// when the tracked round has vanished from the authoritative list, when the
// candidate is the numerically next pending round, or when the same round is
// re-confirmed with a live status after the client wrongly marked it
// finished.
func (c *Controller) ShouldAdvance(candidate Info, known []Info) bool {
	if candidate.Number > c.current {
		return true
	}
	if len(known) > 0 && !containsRound(known, c.current) {
		return true
	}
	if candidate.Number == c.current &&
		c.status == StatusFinished && candidate.Status != StatusFinished {
		return true
	}
	return false
}

// ApplyUpdate runs the guard and, when admitted, applies the candidate's
// number and status. Reports whether the round number changed.
func (c *Controller) ApplyUpdate(candidate Info, known []Info) bool {
	if !c.ShouldAdvance(candidate, known) {
		if candidate.Number < c.current {
			log.Warn().
				Int("current_round", c.current).
				Int("reported_round", candidate.Number).
				Msg("authoritative source reported an older round, keeping local round")
		}
		return false
	}

	advanced := candidate.Number != c.current
	c.current = candidate.Number
	c.status = candidate.Status
	if advanced {
		c.transitioning = false
	}
	return advanced
}

// SetStatus records a status change for the currently displayed round.
func (c *Controller) SetStatus(s Status) {
	c.status = s
}

func containsRound(rounds []Info, number int) bool {
	for _, r := range rounds {
		if r.Number == number {
			return true
		}
	}
	return false
}
