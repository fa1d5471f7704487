package arena

import (
	"time"

	"github.com/shopspring/decimal"

	"prediction-arena/internal/pricefeed"
)

// Team identifies one of the two squads in a match.
type Team string

const (
	TeamAlpha Team = "ALPHA"
	TeamBeta  Team = "BETA"
)

// Opponent returns the other team.
func (t Team) Opponent() Team {
	if t == TeamAlpha {
		return TeamBeta
	}
	return TeamAlpha
}

// Valid reports whether t names a real team.
func (t Team) Valid() bool {
	return t == TeamAlpha || t == TeamBeta
}

// Stance is a team's aggregated directional bet for the battle phase.
type Stance string

const (
	StanceBull      Stance = "BULL"
	StanceBear      Stance = "BEAR"
	StanceUndecided Stance = "UNDECIDED"
)

// Vote is a single directional choice. The zero value means "no vote".
type Vote string

const (
	VoteUp   Vote = "UP"
	VoteDown Vote = "DOWN"
	VoteNone Vote = ""
)

// Phase names the segment of a round the match is currently in.
type Phase string

const (
	PhaseVoting Phase = "VOTING"
	PhaseBattle Phase = "BATTLE"
	PhaseResult Phase = "RESULT"
)

// TeamStats accumulates one team's votes for the current round.
// Invariant: VotesUp + VotesDown == TotalVotes <= squad size.
type TeamStats struct {
	VotesUp    uint   `json:"votesUp"`
	VotesDown  uint   `json:"votesDown"`
	TotalVotes uint   `json:"totalVotes"`
	Stance     Stance `json:"stance"`
	Conviction uint   `json:"conviction"`
}

func newTeamStats() TeamStats {
	return TeamStats{Stance: StanceUndecided}
}

// PricePoint is one observed price sample.
type PricePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// ChatMessage is one entry in the bounded match chat log.
type ChatMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Team      Team      `json:"team"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the read-only view of the aggregate game state published to
// the presentation boundary after every mutation.
type Snapshot struct {
	Phase        Phase            `json:"phase"`
	PhaseEndTime time.Time        `json:"phaseEndTime"`
	RoundNumber  int              `json:"roundNumber"`
	StartPrice   decimal.Decimal  `json:"startPrice"`
	CurrentPrice decimal.Decimal  `json:"currentPrice"`
	PriceSource  pricefeed.Source `json:"priceSource"`
	Alpha        TeamStats        `json:"alphaStats"`
	Beta         TeamStats        `json:"betaStats"`
	AlphaScore   int              `json:"alphaScore"`
	BetaScore    int              `json:"betaScore"`
	Winner       Team             `json:"winner,omitempty"`
	Commentary   string           `json:"commentary"`
	PriceHistory []PricePoint     `json:"priceHistory"`
	Chat         []ChatMessage    `json:"chat"`
	UserTeam     Team             `json:"userTeam,omitempty"`
	UserVote     Vote             `json:"userVote,omitempty"`
	SeriesOver   bool             `json:"seriesOver"`
}

// Rules fixes the timing and sizing constants of a match.
type Rules struct {
	RoundSeconds     int
	VotingSeconds    int
	BattleEndSeconds int
	MaxRounds        int
	SquadSize        uint
	PriceHistoryLim  int
	ChatLogLim       int
}

// DefaultRules returns the standard 3x60s match layout.
func DefaultRules() Rules {
	return Rules{
		RoundSeconds:     60,
		VotingSeconds:    30,
		BattleEndSeconds: 50,
		MaxRounds:        3,
		SquadSize:        5,
		PriceHistoryLim:  60,
		ChatLogLim:       30,
	}
}

// MatchSeconds is the total wall-clock length of a series.
func (r Rules) MatchSeconds() int {
	return r.MaxRounds * r.RoundSeconds
}
