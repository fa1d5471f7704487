package app

import (
	"context"
	"errors"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"prediction-arena/internal/arena"
	"prediction-arena/internal/config"
	"prediction-arena/internal/identity"
	"prediction-arena/internal/localstate"
	"prediction-arena/internal/match"
	"prediction-arena/internal/pricefeed"
	"prediction-arena/internal/server"
	"prediction-arena/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) rules() arena.Rules {
	m := a.Config.Match
	return arena.Rules{
		RoundSeconds:     int(m.RoundDuration / time.Second),
		VotingSeconds:    int(m.VotingDuration / time.Second),
		BattleEndSeconds: int(m.BattleEnd / time.Second),
		MaxRounds:        m.MaxRounds,
		SquadSize:        uint(m.SquadSize),
		PriceHistoryLim:  m.PriceHistory,
		ChatLogLim:       m.ChatLog,
	}
}

func (a *App) botTuning() arena.BotTuning {
	b := a.Config.Bots
	return arena.BotTuning{
		ChatVolume:    b.ChatVolume,
		VoteOffsetMin: b.VoteOffsetMin,
		VoteOffsetMax: b.VoteOffsetMax,
		ChatOffsetMin: b.ChatOffsetMin,
		ChatOffsetMax: b.ChatOffsetMax,
	}
}

func (a *App) newFetcher(rng *rand.Rand, clock clockwork.Clock) pricefeed.Fetcher {
	p := a.Config.Price
	return pricefeed.NewCoinbase(pricefeed.CoinbaseOptions{
		BaseURL:       p.BaseURL,
		Pair:          p.Pair,
		Timeout:       p.RequestTimeout,
		UserAgent:     p.UserAgent,
		FallbackPrice: decimal.NewFromFloat(p.FallbackPrice),
		Jitter:        decimal.NewFromFloat(p.Jitter),
	}, rng, clock, a.Logger)
}

func (a *App) openProfiles(ctx context.Context) (*storage.ProfileRepository, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	repo, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	return repo, repo.Close, nil
}

// Run executes the long-running match client: deploy countdown, the 1 Hz
// driver, and the snapshot hub, until a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := localstate.Open(a.Config.App.StateFile)
	if err != nil {
		return err
	}

	profiles, closeProfiles, err := a.openProfiles(ctx)
	if err != nil {
		return err
	}
	if profiles == nil {
		a.Logger.Warn().Msg("database.dsn not configured; profile persistence disabled")
	}
	if closeProfiles != nil {
		defer closeProfiles()
	}

	clock := clockwork.NewRealClock()
	rng := rand.New(rand.NewSource(clock.Now().UnixNano()))

	bots := arena.NewBotScheduler(a.botTuning(), rng)
	engine := arena.NewEngine(a.rules(), bots, rng, clock, a.Logger)
	feed := a.newFetcher(rng, clock)

	ctrl := match.NewController(match.Options{
		Rules:           a.rules(),
		DeployCountdown: a.Config.Match.DeployCountdown,
	}, engine, feed, store, profileStore(profiles), rng, clock, a.Logger)

	auth := &identity.StaticProvider{Session: identity.Session{
		UserID:   a.Config.Player.UserID,
		Username: a.Config.Player.Username,
	}}
	session, err := auth.GetSession(ctx)
	if err != nil {
		return err
	}
	ctrl.Attach(session)
	auth.OnAuthStateChange(func(s *identity.Session) {
		if s == nil {
			ctrl.Detach()
			return
		}
		ctrl.Attach(s)
	})

	g, ctx := errgroup.WithContext(ctx)

	if a.Config.Server.Enabled {
		hub := server.NewHub(ctrl, a.Logger)
		ctrl.SetPublisher(hub.Publish)
		g.Go(func() error {
			return hub.ListenAndServe(ctx, a.Config.Server.ListenAddr)
		})
	}

	g.Go(func() error {
		return ctrl.Run(ctx)
	})

	g.Go(func() error {
		if ctrl.State() == match.StateLockedOut {
			a.Logger.Info().Int("remaining_s", ctrl.LockRemaining()).Msg("arena locked, waiting out the current match")
			return nil
		}
		return ctrl.Deploy(ctx)
	})

	a.Logger.Info().Msg("arena client started")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("arena client terminated with error")
		return err
	}

	a.Logger.Info().Msg("arena client stopped")
	return nil
}

// profileStore narrows the optional repository to the port type, keeping a
// typed-nil out of the interface.
func profileStore(repo *storage.ProfileRepository) identity.ProfileStore {
	if repo == nil {
		return nil
	}
	return repo
}

// LeaderboardOptions configure the leaderboard command.
type LeaderboardOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting a simulated price path.
type ExportOptions struct {
	Seed    int64
	CSVPath string
	PNGPath string
}

// SimulateOptions configure the offline match simulation.
type SimulateOptions struct {
	Seed int64
}
