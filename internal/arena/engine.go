package arena

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"prediction-arena/internal/pricefeed"
)

const (
	initialCommentary = "Initializing network security protocols..."
	restartCommentary = "Re-initializing network protocols..."
)

// Engine is the round resolution state machine. It owns the aggregate game
// state: every mutation goes through OnTick, CastVote, or SubmitChat, and
// each of those publishes a fresh Snapshot. State is single-writer; the
// mutex keeps command submissions from the presentation boundary atomic
// with respect to the tick.
type Engine struct {
	rules  Rules
	bots   *BotScheduler
	rng    *rand.Rand
	clock  clockwork.Clock
	logger zerolog.Logger

	mu           sync.Mutex
	phase        Phase
	phaseEnd     time.Time
	round        int
	startPrice   decimal.Decimal
	currentPrice decimal.Decimal
	priceSource  pricefeed.Source
	alpha        TeamStats
	beta         TeamStats
	alphaScore   int
	betaScore    int
	winner       Team
	commentary   string
	history      []PricePoint
	chat         []ChatMessage
	seriesOver   bool

	userTeam Team
	userName string
	userVote Vote

	pendingVotes []BotVoteEvent
	pendingChats []BotChatEvent
	lastTick     int
}

// NewEngine constructs an engine. The rng covers every in-round random draw
// (auto-cast votes, squad fills, commentary picks) so a seeded source makes
// whole rounds reproducible.
func NewEngine(rules Rules, bots *BotScheduler, rng *rand.Rand, clock clockwork.Clock, logger zerolog.Logger) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	e := &Engine{
		rules:  rules,
		bots:   bots,
		rng:    rng,
		clock:  clock,
		logger: logger.With().Str("component", "engine").Logger(),
	}
	e.resetLocked(initialCommentary)
	return e
}

// SetUser binds the identified human participant. An engine without a user
// still runs rounds; vote and chat commands are no-ops until one is set.
func (e *Engine) SetUser(name string, team Team) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userName = name
	e.userTeam = team
	e.userVote = VoteNone
}

// StartMatch clears per-match state and pre-generates round 1 bot activity.
// Called by the lifecycle controller at the moment the anchor is written.
func (e *Engine) StartMatch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked(initialCommentary)
	e.scheduleBotsLocked()
}

// Reset clears all per-match state without scheduling new bot activity.
// Used by restart, which re-enters the deploy countdown before play resumes.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked(restartCommentary)
}

func (e *Engine) resetLocked(commentary string) {
	e.phase = PhaseVoting
	e.phaseEnd = time.Time{}
	e.round = 1
	e.startPrice = decimal.Decimal{}
	e.alpha = newTeamStats()
	e.beta = newTeamStats()
	e.alphaScore = 0
	e.betaScore = 0
	e.winner = ""
	e.commentary = commentary
	e.chat = nil
	e.userVote = VoteNone
	e.pendingVotes = nil
	e.pendingChats = nil
	e.lastTick = -1
	e.seriesOver = false
}

func (e *Engine) scheduleBotsLocked() {
	votes, chats := e.bots.ScheduleRound(e.userTeam)
	e.pendingVotes = votes
	e.pendingChats = chats
}

// OnTick advances the state machine to the given elapsed second. Repeated
// elapsed values are ignored, so processing the same second twice produces
// no additional mutation.
func (e *Engine) OnTick(totalElapsed int, quote pricefeed.Quote) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.seriesOver || totalElapsed < 0 {
		return e.snapshotLocked()
	}
	if totalElapsed >= e.rules.MatchSeconds() {
		e.seriesOver = true
		e.lastTick = -1
		e.logger.Info().Int("alpha_score", e.alphaScore).Int("beta_score", e.betaScore).Msg("series ended")
		return e.snapshotLocked()
	}
	if totalElapsed == e.lastTick {
		return e.snapshotLocked()
	}
	e.lastTick = totalElapsed

	reading := e.rules.DeriveClock(totalElapsed)
	roundElapsed := totalElapsed % e.rules.RoundSeconds
	now := quote.At

	if roundElapsed == 0 && totalElapsed > 0 {
		e.beginRoundLocked()
	}

	if roundElapsed == e.rules.VotingSeconds-1 {
		e.closeVotingLocked()
	}

	if reading.Phase == PhaseVoting {
		e.applyDueVotesLocked(roundElapsed)
	}

	e.applyDueChatsLocked(roundElapsed, now)

	if roundElapsed == e.rules.VotingSeconds {
		e.startPrice = quote.Price
		finalizeStance(&e.alpha)
		finalizeStance(&e.beta)
		e.logger.Debug().
			Str("alpha_stance", string(e.alpha.Stance)).
			Str("beta_stance", string(e.beta.Stance)).
			Str("start_price", e.startPrice.String()).
			Msg("stances locked")
	}

	if roundElapsed == e.rules.BattleEndSeconds {
		e.resolveRoundLocked(quote.Price)
	}

	if roundElapsed%10 == 0 || roundElapsed == e.rules.VotingSeconds+1 || roundElapsed == e.rules.BattleEndSeconds+1 {
		e.commentary = tacticalPhrases[e.rng.Intn(len(tacticalPhrases))]
	}

	e.currentPrice = quote.Price
	e.priceSource = quote.Source
	e.history = append(e.history, PricePoint{Timestamp: now, Price: quote.Price})
	if len(e.history) > e.rules.PriceHistoryLim {
		e.history = e.history[len(e.history)-e.rules.PriceHistoryLim:]
	}
	e.phase = reading.Phase
	e.phaseEnd = now.Add(time.Duration(reading.Remaining) * time.Second)
	e.round = reading.Round

	return e.snapshotLocked()
}

// beginRoundLocked resets per-round state and schedules a fresh batch of
// bot activity. Unfired events from the previous round never carry over.
func (e *Engine) beginRoundLocked() {
	e.alpha = newTeamStats()
	e.beta = newTeamStats()
	e.winner = ""
	e.userVote = VoteNone
	e.scheduleBotsLocked()
}

// closeVotingLocked fires one second before stance finalization: auto-cast
// the human's vote if absent, then top both squads up to full strength so
// the reading at finalization is complete regardless of bot timing.
func (e *Engine) closeVotingLocked() {
	if e.userVote == VoteNone && e.userTeam.Valid() {
		choice := e.randomChoiceLocked()
		stats := e.statsForLocked(e.userTeam)
		stats.TotalVotes++
		if choice == VoteUp {
			stats.VotesUp++
		} else {
			stats.VotesDown++
		}
		e.userVote = choice
	}

	e.fillSquadLocked(&e.alpha)
	e.fillSquadLocked(&e.beta)
	e.pendingVotes = nil
}

func (e *Engine) fillSquadLocked(stats *TeamStats) {
	for stats.TotalVotes < e.rules.SquadSize {
		stats.TotalVotes++
		if e.randomChoiceLocked() == VoteUp {
			stats.VotesUp++
		} else {
			stats.VotesDown++
		}
	}
}

func (e *Engine) randomChoiceLocked() Vote {
	if e.rng.Float64() > 0.5 {
		return VoteUp
	}
	return VoteDown
}

// applyDueVotesLocked fires bot votes whose offset has elapsed, exactly
// once each, respecting the squad cap.
func (e *Engine) applyDueVotesLocked(roundElapsed int) {
	remaining := e.pendingVotes[:0]
	for _, ev := range e.pendingVotes {
		if ev.Offset > roundElapsed {
			remaining = append(remaining, ev)
			continue
		}
		stats := e.statsForLocked(ev.Team)
		if stats.TotalVotes < e.rules.SquadSize {
			stats.TotalVotes++
			if ev.Choice == VoteUp {
				stats.VotesUp++
			} else {
				stats.VotesDown++
			}
		}
	}
	e.pendingVotes = remaining
}

func (e *Engine) applyDueChatsLocked(roundElapsed int, now time.Time) {
	remaining := e.pendingChats[:0]
	for _, ev := range e.pendingChats {
		if ev.Offset > roundElapsed {
			remaining = append(remaining, ev)
			continue
		}
		e.appendChatLocked(ChatMessage{
			ID:        uuid.NewString(),
			Sender:    ev.Sender,
			Team:      ev.Team,
			Text:      ev.Text,
			Timestamp: now,
		})
	}
	e.pendingChats = remaining
}

func (e *Engine) appendChatLocked(msg ChatMessage) {
	e.chat = append(e.chat, msg)
	if len(e.chat) > e.rules.ChatLogLim {
		e.chat = e.chat[len(e.chat)-e.rules.ChatLogLim:]
	}
}

// finalizeStance derives stance and conviction from the vote split. An
// empty squad reads as a dead-even 50%.
func finalizeStance(stats *TeamStats) {
	upPct := 50.0
	if stats.TotalVotes > 0 {
		upPct = float64(stats.VotesUp) / float64(stats.TotalVotes) * 100
	}
	if upPct >= 50 {
		stats.Stance = StanceBull
		stats.Conviction = uint(roundPct(upPct))
	} else {
		stats.Stance = StanceBear
		stats.Conviction = uint(roundPct(100 - upPct))
	}
}

func roundPct(v float64) int {
	return int(v + 0.5)
}

// ResolveWinner decides a round given both teams' finalized stats and the
// observed price direction. If exactly one team called the direction it
// wins; otherwise the higher conviction wins, with ties going to ALPHA.
// Pure function of its inputs.
func ResolveWinner(alpha, beta TeamStats, priceUp bool) Team {
	alphaRight := (alpha.Stance == StanceBull && priceUp) || (alpha.Stance == StanceBear && !priceUp)
	betaRight := (beta.Stance == StanceBull && priceUp) || (beta.Stance == StanceBear && !priceUp)

	switch {
	case alphaRight && !betaRight:
		return TeamAlpha
	case betaRight && !alphaRight:
		return TeamBeta
	default:
		if alpha.Conviction >= beta.Conviction {
			return TeamAlpha
		}
		return TeamBeta
	}
}

func (e *Engine) resolveRoundLocked(price decimal.Decimal) {
	up := price.GreaterThan(e.startPrice)
	e.winner = ResolveWinner(e.alpha, e.beta, up)

	if e.winner == TeamAlpha {
		e.alphaScore++
	} else {
		e.betaScore++
	}

	e.logger.Info().
		Int("round", e.round).
		Str("winner", string(e.winner)).
		Bool("price_up", up).
		Msg("round resolved")
}

// CastVote records or changes the human's vote. Silently ignored outside
// the voting phase or without a bound user; those are expected races, not
// faults.
func (e *Engine) CastVote(choice Vote) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if choice != VoteUp && choice != VoteDown {
		return e.snapshotLocked()
	}
	if !e.userTeam.Valid() || e.phase != PhaseVoting || e.seriesOver {
		return e.snapshotLocked()
	}

	stats := e.statsForLocked(e.userTeam)
	if e.userVote == VoteNone {
		stats.TotalVotes++
	} else if e.userVote == VoteUp {
		stats.VotesUp--
	} else {
		stats.VotesDown--
	}
	if choice == VoteUp {
		stats.VotesUp++
	} else {
		stats.VotesDown++
	}
	e.userVote = choice

	return e.snapshotLocked()
}

// SubmitChat appends a human chat line to the bounded log.
func (e *Engine) SubmitChat(text string) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	text = strings.TrimSpace(text)
	if text == "" || e.userName == "" {
		return e.snapshotLocked()
	}

	e.appendChatLocked(ChatMessage{
		ID:        uuid.NewString(),
		Sender:    e.userName,
		Team:      e.userTeam,
		Text:      text,
		Timestamp: e.clock.Now(),
	})
	return e.snapshotLocked()
}

// Snapshot returns the current read-only view.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// SeriesOver reports whether the match window has fully elapsed.
func (e *Engine) SeriesOver() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seriesOver
}

func (e *Engine) statsForLocked(team Team) *TeamStats {
	if team == TeamAlpha {
		return &e.alpha
	}
	return &e.beta
}

func (e *Engine) snapshotLocked() Snapshot {
	history := make([]PricePoint, len(e.history))
	copy(history, e.history)
	chat := make([]ChatMessage, len(e.chat))
	copy(chat, e.chat)

	return Snapshot{
		Phase:        e.phase,
		PhaseEndTime: e.phaseEnd,
		RoundNumber:  e.round,
		StartPrice:   e.startPrice,
		CurrentPrice: e.currentPrice,
		PriceSource:  e.priceSource,
		Alpha:        e.alpha,
		Beta:         e.beta,
		AlphaScore:   e.alphaScore,
		BetaScore:    e.betaScore,
		Winner:       e.winner,
		Commentary:   e.commentary,
		PriceHistory: history,
		Chat:         chat,
		UserTeam:     e.userTeam,
		UserVote:     e.userVote,
		SeriesOver:   e.seriesOver,
	}
}
