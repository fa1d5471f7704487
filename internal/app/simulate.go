package app

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"prediction-arena/internal/arena"
	"prediction-arena/internal/pricefeed"
)

// SimulateMatch plays a full offline series with a seeded rng and a
// synthetic price walk, printing each round's resolution. The same seed
// always reproduces the same match.
func (a *App) SimulateMatch(ctx context.Context, opts SimulateOptions) error {
	rules := a.rules()
	rng := rand.New(rand.NewSource(opts.Seed))

	bots := arena.NewBotScheduler(a.botTuning(), rng)
	engine := arena.NewEngine(rules, bots, rng, clockwork.NewRealClock(), a.Logger)

	team := arena.TeamAlpha
	if rng.Float64() > 0.5 {
		team = arena.TeamBeta
	}
	engine.SetUser("SIM_OPERATOR", team)
	engine.StartMatch()

	price := decimal.NewFromFloat(a.Config.Price.FallbackPrice)
	jitter := decimal.NewFromFloat(a.Config.Price.Jitter)
	base := time.Now().UTC()

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Round\tWinner\tAlpha\tBeta\tScore")

	var last arena.Snapshot
	for t := 0; t <= rules.MatchSeconds(); t++ {
		price = price.Add(jitter.Mul(decimal.NewFromFloat(rng.Float64()*2 - 1)))
		last = engine.OnTick(t, pricefeed.Quote{
			Price:  price,
			Source: pricefeed.SourceSimulated,
			At:     base.Add(time.Duration(t) * time.Second),
		})

		if t%rules.RoundSeconds == rules.BattleEndSeconds {
			fmt.Fprintf(writer, "%d\t%s\t%s %d%%\t%s %d%%\t%d:%d\n",
				last.RoundNumber,
				last.Winner,
				last.Alpha.Stance, last.Alpha.Conviction,
				last.Beta.Stance, last.Beta.Conviction,
				last.AlphaScore, last.BetaScore,
			)
		}
	}

	writer.Flush()
	fmt.Fprintf(os.Stdout, "\nfinal: ALPHA %d - BETA %d (you were %s)\n", last.AlphaScore, last.BetaScore, team)
	return nil
}
