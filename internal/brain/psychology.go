package brain

import (
	"fmt"
	"strings"
	"time"

	"vigil/internal/config"
	"vigil/internal/worldstate"
)

// AnalyzePsychology inspects recent trade outcomes and session behavior for
// tilt, fatigue and overconfidence, and recommends a sizing multiplier. An
// empty history is a new user, not a warning sign: it grades green with a
// neutral multiplier.
func AnalyzePsychology(snap *worldstate.Snapshot, cfg config.PsychologyConfig) Output[PsychologyData] {
	if snap == nil {
		return newOutput(StateRed, 0, "no world state; cannot assess behavior", PsychologyData{
			MentalState:       MentalClear,
			RecommendedAction: ActionPause,
		})
	}

	outcomes := snap.Memory.Outcomes
	if len(outcomes) > cfg.LookbackTrades && cfg.LookbackTrades > 0 {
		outcomes = outcomes[:cfg.LookbackTrades]
	}

	if len(outcomes) == 0 {
		return newOutput(StateGreen, 0.6, "no behavioral history yet; proceeding with neutral sizing", PsychologyData{
			MentalState:       MentalClear,
			RecommendedAction: ActionProceed,
			SizeMultiplier:    1.0,
		})
	}

	lossStreak, winStreak := streaks(outcomes)
	var flags []string

	data := PsychologyData{
		MentalState:       MentalClear,
		RecommendedAction: ActionProceed,
		SizeMultiplier:    1.0,
	}
	state := StateGreen

	switch {
	case lossStreak >= 5:
		data.MentalState = MentalTilt
		data.RecommendedAction = ActionPause
		data.SizeMultiplier = 0
		state = StateRed
		flags = append(flags, fmt.Sprintf("loss_streak_%d", lossStreak))
	case lossStreak >= 3:
		data.MentalState = MentalTilt
		data.RecommendedAction = ActionSizeDown
		data.SizeMultiplier = cfg.SizeDownMultiplier
		state = StateAmber
		flags = append(flags, fmt.Sprintf("loss_streak_%d", lossStreak))
	case winStreak >= 4:
		data.MentalState = MentalOverconfident
		data.RecommendedAction = ActionSizeDown
		data.SizeMultiplier = cfg.SizeDownMultiplier
		state = StateAmber
		flags = append(flags, fmt.Sprintf("win_streak_%d", winStreak))
	}

	if snap.User.SessionLength > 6*time.Hour {
		flags = append(flags, "long_session")
		if state == StateGreen {
			data.MentalState = MentalFatigued
			data.RecommendedAction = ActionCoolDown
			data.SizeMultiplier = cfg.CoolDownMultiplier
			state = StateAmber
		}
	}

	if avg := avgHoldingTime(outcomes); avg > 0 && avg < 5*time.Minute && len(outcomes) >= 5 {
		flags = append(flags, "rapid_fire_trades")
		if state == StateGreen {
			data.MentalState = MentalFOMO
			data.RecommendedAction = ActionSizeDown
			data.SizeMultiplier = cfg.SizeDownMultiplier
			state = StateAmber
		}
	}

	if snap.User.Rejected >= 3 && snap.User.Rejected > snap.User.Approved {
		flags = append(flags, "high_rejection_rate")
		if state == StateGreen {
			data.MentalState = MentalFear
			data.RecommendedAction = ActionCoolDown
			data.SizeMultiplier = cfg.CoolDownMultiplier
			state = StateAmber
		}
	}

	data.Flags = flags
	confidence := 0.8
	if state != StateGreen {
		confidence = 0.6
	}
	reason := fmt.Sprintf("mental state %s over last %d trades (loss streak %d, win streak %d): %s",
		data.MentalState, len(outcomes), lossStreak, winStreak, data.RecommendedAction)
	if len(flags) > 0 {
		reason += " [" + strings.Join(flags, ", ") + "]"
	}
	return newOutput(state, confidence, reason, data)
}

// streaks counts consecutive wins/losses from the most recent outcome; the
// streak breaks at the first opposite result.
func streaks(outcomes []worldstate.TradeOutcome) (losses, wins int) {
	for _, o := range outcomes {
		if o.Win() {
			break
		}
		losses++
	}
	for _, o := range outcomes {
		if !o.Win() {
			break
		}
		wins++
	}
	return losses, wins
}

func avgHoldingTime(outcomes []worldstate.TradeOutcome) time.Duration {
	if len(outcomes) == 0 {
		return 0
	}
	var total time.Duration
	for _, o := range outcomes {
		total += o.HoldingTime
	}
	return total / time.Duration(len(outcomes))
}
