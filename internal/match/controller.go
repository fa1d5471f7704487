package match

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"prediction-arena/internal/arena"
	"prediction-arena/internal/identity"
	"prediction-arena/internal/localstate"
	"prediction-arena/internal/pricefeed"
)

// State is the lifecycle position of this client's match.
type State string

const (
	StateNotStarted  State = "NOT_STARTED"
	StateDeploying   State = "DEPLOYING"
	StateActive      State = "ACTIVE"
	StateLockedOut   State = "LOCKED_OUT"
	StateSeriesEnded State = "SERIES_ENDED"
)

// staleGraceSeconds tolerates clock skew past the match window before an
// anchor is treated as stale and ignored.
const staleGraceSeconds = 5

// Options parameterise the controller.
type Options struct {
	Rules           arena.Rules
	DeployCountdown time.Duration
}

// Controller owns the match anchor and drives the engine at 1 Hz. It is the
// only writer of lifecycle state; the engine is the only writer of game
// state. Everything timing-related is re-derived from the persisted anchor
// each tick, never from a locally incremented counter.
type Controller struct {
	rules      arena.Rules
	deployWait time.Duration
	engine     *arena.Engine
	feed       pricefeed.Fetcher
	store      localstate.Store
	profiles   identity.ProfileStore
	rng        *rand.Rand
	clock      clockwork.Clock
	logger     zerolog.Logger

	mu              sync.Mutex
	state           State
	session         *identity.Session
	lastPrice       decimal.Decimal
	lockRemaining   int
	deployRemaining int
	resultRecorded  bool
	publish         func(arena.Snapshot)
}

// NewController wires the lifecycle controller. profiles may be nil when no
// persistence collaborator is configured.
func NewController(opts Options, engine *arena.Engine, feed pricefeed.Fetcher, store localstate.Store, profiles identity.ProfileStore, rng *rand.Rand, clock clockwork.Clock, logger zerolog.Logger) *Controller {
	deployWait := opts.DeployCountdown
	if deployWait <= 0 {
		deployWait = 10 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Controller{
		rules:      opts.Rules,
		deployWait: deployWait,
		engine:     engine,
		feed:       feed,
		store:      store,
		profiles:   profiles,
		rng:        rng,
		clock:      clock,
		logger:     logger.With().Str("component", "match").Logger(),
		state:      StateNotStarted,
	}
}

// SetPublisher registers the snapshot sink for the presentation boundary.
func (c *Controller) SetPublisher(fn func(arena.Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publish = fn
}

// Attach binds the authenticated session and applies any join-lock: an
// anchor already in flight means this observer was not part of the original
// deployment, so they watch the countdown with zero influence on state.
func (c *Controller) Attach(session *identity.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = session
	team, _ := c.store.Team()
	if session != nil {
		c.engine.SetUser(session.Username, team)
	}

	if anchor, ok := c.store.MatchStart(); ok {
		elapsed := c.elapsedSince(anchor)
		if elapsed >= 0 && elapsed < c.rules.MatchSeconds() {
			c.state = StateLockedOut
			c.lockRemaining = c.rules.MatchSeconds() - elapsed
			c.logger.Info().Int("remaining_s", c.lockRemaining).Msg("joined mid-match, locked out")
		}
	}
}

// Detach drops the bound session on auth sign-out. The match keeps running
// and its anchor stays persisted; vote and chat commands are inert until a
// session attaches again.
func (c *Controller) Detach() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()

	c.engine.SetUser("", "")
	c.logger.Info().Msg("session detached")
}

// Deploy runs the pre-match countdown, then writes the anchor and starts
// round 1. Blocks for the countdown; honours ctx cancellation.
func (c *Controller) Deploy(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateLockedOut || c.state == StateDeploying || c.state == StateActive {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDeploying

	team, ok := c.store.Team()
	if !ok {
		team = arena.TeamAlpha
		if c.rng.Float64() > 0.5 {
			team = arena.TeamBeta
		}
		if err := c.store.SetTeam(team); err != nil {
			c.logger.Error().Err(err).Msg("failed to persist team assignment")
		}
	}
	if c.session != nil {
		c.engine.SetUser(c.session.Username, team)
	}
	countdown := int(c.deployWait / time.Second)
	c.deployRemaining = countdown
	c.mu.Unlock()

	c.logger.Info().Str("team", string(team)).Int("countdown_s", countdown).Msg("deploying")

	for i := countdown; i > 0; i-- {
		c.mu.Lock()
		c.deployRemaining = i
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.state = StateNotStarted
			c.mu.Unlock()
			return ctx.Err()
		case <-c.clock.After(time.Second):
		}
	}

	anchor := c.clock.Now()
	if err := c.store.SetMatchStart(anchor); err != nil {
		c.mu.Lock()
		c.state = StateNotStarted
		c.mu.Unlock()
		return err
	}

	c.engine.StartMatch()

	c.mu.Lock()
	c.state = StateActive
	c.deployRemaining = 0
	c.resultRecorded = false
	c.mu.Unlock()

	c.logger.Info().Time("anchor", anchor).Msg("match started")
	return nil
}

// Run drives the 1 Hz loop until ctx is cancelled. Ticks are processed
// sequentially on this goroutine: a tick delayed by a slow price fetch
// coalesces with the next ticker firing rather than queueing behind it, and
// the engine's elapsed-second guard makes any resulting repeats harmless.
func (c *Controller) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			c.step(ctx)
		}
	}
}

func (c *Controller) step(ctx context.Context) {
	anchor, ok := c.store.MatchStart()
	if !ok {
		return
	}

	elapsed := c.elapsedSince(anchor)
	if elapsed < 0 || elapsed > c.rules.MatchSeconds()+staleGraceSeconds {
		return
	}

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateNotStarted, StateDeploying, StateSeriesEnded:
		return
	case StateLockedOut:
		c.stepLockedOut(elapsed)
		return
	}

	if elapsed >= c.rules.MatchSeconds() {
		c.finishSeries(ctx, elapsed)
		return
	}

	c.mu.Lock()
	last := c.lastPrice
	c.mu.Unlock()

	quote := c.feed.FetchSpot(ctx, last)

	c.mu.Lock()
	c.lastPrice = quote.Price
	c.mu.Unlock()

	snap := c.engine.OnTick(elapsed, quote)
	c.publishSnapshot(snap)
}

func (c *Controller) stepLockedOut(elapsed int) {
	remaining := c.rules.MatchSeconds() - elapsed
	c.mu.Lock()
	if remaining <= 0 {
		c.lockRemaining = 0
		c.state = StateNotStarted
		c.mu.Unlock()
		if err := c.store.ClearMatchStart(); err != nil {
			c.logger.Error().Err(err).Msg("failed to clear stale anchor")
		}
		c.logger.Info().Msg("lockout window elapsed")
		return
	}
	c.lockRemaining = remaining
	c.mu.Unlock()
}

func (c *Controller) finishSeries(ctx context.Context, elapsed int) {
	snap := c.engine.OnTick(elapsed, pricefeed.Quote{At: c.clock.Now()})

	c.mu.Lock()
	c.state = StateSeriesEnded
	alreadyRecorded := c.resultRecorded
	c.resultRecorded = true
	session := c.session
	c.mu.Unlock()

	if !alreadyRecorded {
		c.recordResult(ctx, session, snap)
	}
	c.publishSnapshot(snap)
}

// recordResult writes the series outcome to the persistence collaborator.
// Failures are logged only; scores stay frozen in memory either way.
func (c *Controller) recordResult(ctx context.Context, session *identity.Session, snap arena.Snapshot) {
	if c.profiles == nil || session == nil || !snap.UserTeam.Valid() {
		return
	}

	userScore, otherScore := snap.AlphaScore, snap.BetaScore
	if snap.UserTeam == arena.TeamBeta {
		userScore, otherScore = snap.BetaScore, snap.AlphaScore
	}

	profile, err := c.profiles.GetProfile(ctx, session.UserID)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to load profile for result recording")
		return
	}
	if profile == nil {
		profile = &identity.Profile{ID: session.UserID, Username: session.Username}
	}

	if userScore > otherScore {
		profile.Wins++
	} else {
		profile.Losses++
	}
	profile.TotalScore += userScore

	if err := c.profiles.UpsertProfile(ctx, *profile); err != nil {
		c.logger.Error().Err(err).Msg("failed to persist series result")
		return
	}
	c.logger.Info().Int("user_score", userScore).Int("other_score", otherScore).Msg("series result recorded")
}

// Restart begins a fresh series from the ended state: clears the anchor and
// all accumulated match state, then re-enters the deploy countdown.
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateSeriesEnded {
		c.mu.Unlock()
		return nil
	}
	c.state = StateNotStarted
	c.mu.Unlock()

	if err := c.store.ClearMatchStart(); err != nil {
		return err
	}
	c.engine.Reset()
	return c.Deploy(ctx)
}

// Exit abandons the match permanently: anchor and team association are
// cleared and the engine is reset. The caller cancels the Run context.
func (c *Controller) Exit() {
	c.mu.Lock()
	c.state = StateNotStarted
	c.session = nil
	c.lockRemaining = 0
	c.mu.Unlock()

	if err := c.store.ClearMatchStart(); err != nil {
		c.logger.Error().Err(err).Msg("failed to clear anchor on exit")
	}
	if err := c.store.ClearTeam(); err != nil {
		c.logger.Error().Err(err).Msg("failed to clear team on exit")
	}
	c.engine.SetUser("", "")
	c.engine.Reset()
	c.logger.Info().Msg("match abandoned")
}

// CastVote forwards a vote command while the match is active.
func (c *Controller) CastVote(choice arena.Vote) {
	if c.State() != StateActive {
		return
	}
	c.publishSnapshot(c.engine.CastVote(choice))
}

// SubmitChat forwards a chat command while the match is active.
func (c *Controller) SubmitChat(text string) {
	if c.State() != StateActive {
		return
	}
	c.publishSnapshot(c.engine.SubmitChat(text))
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LockRemaining is the seconds left on a join-lock, zero otherwise.
func (c *Controller) LockRemaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lockRemaining
}

// DeployRemaining is the seconds left on the deploy countdown.
func (c *Controller) DeployRemaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deployRemaining
}

func (c *Controller) publishSnapshot(snap arena.Snapshot) {
	c.mu.Lock()
	publish := c.publish
	c.mu.Unlock()
	if publish != nil {
		publish(snap)
	}
}

func (c *Controller) elapsedSince(anchor time.Time) int {
	return int(c.clock.Now().Sub(anchor) / time.Second)
}
