package arena

// ClockReading is the derived position of a match at a given elapsed time.
type ClockReading struct {
	Round     int
	Phase     Phase
	Remaining int
}

// DeriveClock maps total elapsed match seconds to (round, phase, remaining).
// It is a pure function: all round/phase state is re-derived from the match
// anchor every tick, which is what makes two observers of the same anchor
// converge after a reload. Negative input clamps to zero.
func (r Rules) DeriveClock(totalElapsed int) ClockReading {
	if totalElapsed < 0 {
		totalElapsed = 0
	}

	round := totalElapsed/r.RoundSeconds + 1
	if round > r.MaxRounds {
		round = r.MaxRounds
	}
	roundElapsed := totalElapsed % r.RoundSeconds

	switch {
	case roundElapsed < r.VotingSeconds:
		return ClockReading{Round: round, Phase: PhaseVoting, Remaining: r.VotingSeconds - roundElapsed}
	case roundElapsed < r.BattleEndSeconds:
		return ClockReading{Round: round, Phase: PhaseBattle, Remaining: r.BattleEndSeconds - roundElapsed}
	default:
		return ClockReading{Round: round, Phase: PhaseResult, Remaining: r.RoundSeconds - roundElapsed}
	}
}
